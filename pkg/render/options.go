// Package render draws reconciled frames: animated SVG documents for the
// browser and static PNG snapshots of a frame's final state.
package render

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/mattn/go-runewidth"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/treescope/pkg/layout"
)

// Surface defaults. The drawing height is what the first pass centres the
// root on.
const (
	DefaultWidth      = 1200
	DefaultHeight     = 800
	DefaultMarginTop  = 20
	DefaultMarginLeft = 90
	DefaultLabelWidth = 40
)

// Options controls how a frame is drawn.
type Options struct {
	Width, Height int
	Margin        r2.Vec // offset of the drawing origin inside the surface

	// Pan/zoom applied on top of the margin.
	Translate r2.Vec
	Scale     float64

	Title      string
	LabelWidth int  // label cells before truncation; <= 0 disables truncation
	Static     bool // SVG only: draw the final state without animation
}

// DefaultOptions returns a 1200×800 surface with the standard margins and
// identity pan/zoom.
func DefaultOptions() Options {
	return Options{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Margin:     r2.Vec{X: DefaultMarginLeft, Y: DefaultMarginTop},
		Scale:      1,
		LabelWidth: DefaultLabelWidth,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	return o
}

// TransformAttr is the SVG transform of the pan/zoom group.
func (o Options) TransformAttr() string {
	return fmt.Sprintf("translate(%s,%s) scale(%s)",
		layout.FormatCoord(o.Translate.X), layout.FormatCoord(o.Translate.Y),
		formatScale(o.Scale))
}

func formatScale(k float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", k), "0"), ".")
}

// Label shortens a node name to width terminal cells, counting wide runes
// twice.
func Label(name string, width int) string {
	if width <= 0 || runewidth.StringWidth(name) <= width {
		return name
	}
	return runewidth.Truncate(name, width, "…")
}

var (
	colorBackdrop  = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorStroke    = color.RGBA{0x46, 0x82, 0xb4, 0xff} // steelblue
	colorEdge      = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
	colorText      = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorCollapsed = color.RGBA{0xb0, 0xc4, 0xde, 0xff} // lightsteelblue
	colorLeaf      = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
