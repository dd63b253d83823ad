package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// Theme is the palette and the pre-computed styles of the terminal explorer.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor

	// Node markers, matching the fills of the SVG renderer.
	Collapsed lipgloss.AdaptiveColor
	Leaf      lipgloss.AdaptiveColor
	Match     lipgloss.AdaptiveColor
	Danger    lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style
	Panel    lipgloss.Style

	// Created once instead of per row.
	MutedText     lipgloss.Style
	SecondaryText lipgloss.Style
	PrimaryBold   lipgloss.Style
	MatchText     lipgloss.Style
	ErrorText     lipgloss.Style
	Guides        lipgloss.Style
	LeafMark      lipgloss.Style
	CollapsedMark lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},

		Collapsed: lipgloss.AdaptiveColor{Light: "#2C7FB8", Dark: "#8BE9FD"}, // lightsteelblue in the SVG
		Leaf:      lipgloss.AdaptiveColor{Light: "#555555", Dark: "#F8F8F2"},
		Match:     lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Danger:    lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		Bold(true)
	if TermProfile < colorprofile.ANSI256 {
		// The highlight background is unreadable with 16 colors.
		t.Selected = t.Selected.UnsetBackground().Reverse(true)
	}

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Panel = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.SecondaryText = r.NewStyle().Foreground(t.Secondary)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.MatchText = r.NewStyle().Foreground(t.Match).Bold(true)
	t.ErrorText = r.NewStyle().Foreground(t.Danger).Bold(true)
	t.Guides = r.NewStyle().Foreground(t.Muted)
	t.LeafMark = r.NewStyle().Foreground(t.Leaf)
	t.CollapsedMark = r.NewStyle().Foreground(t.Collapsed).Bold(true)

	return t
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
