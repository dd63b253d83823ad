package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/search"
)

// treeRow is one line of the outline: a visible node and its guide prefix.
type treeRow struct {
	index  hierarchy.Index
	prefix string
}

// TreeView renders the visible nodes of a tree as an indented outline with a
// cursor. It never changes expansion state itself; the model dispatches
// events to the session and calls Sync afterwards.
type TreeView struct {
	theme  Theme
	tree   *hierarchy.Tree
	state  *hierarchy.State
	query  search.Query
	rows   []treeRow
	match  map[hierarchy.Index]bool
	cursor int
	offset int
	width  int
	height int
}

// NewTreeView creates an empty view.
func NewTreeView(theme Theme) TreeView {
	return TreeView{theme: theme, width: 80, height: 20}
}

// SetSize sets the outline's width and number of rows.
func (v *TreeView) SetSize(width, height int) {
	v.width = width
	v.height = max(height, 1)
	v.ensureCursorVisible()
}

// Sync rebuilds the rows from the visible nodes. The cursor stays on the
// same node when it is still visible, otherwise on its nearest visible
// ancestor.
func (v *TreeView) Sync(t *hierarchy.Tree, st *hierarchy.State, q search.Query) {
	keep := hierarchy.NoIndex
	if i, ok := v.Selected(); ok && v.tree == t {
		keep = i
	}

	v.tree, v.state, v.query = t, st, q
	v.rows = v.rows[:0]
	v.match = nil
	if t == nil || st == nil || st.Hidden(t.Root()) {
		v.cursor, v.offset = 0, 0
		return
	}
	v.walk(t.Root(), "", true, 0)

	if !q.Empty() {
		v.match = make(map[hierarchy.Index]bool)
		for _, i := range search.Matches(t, q) {
			v.match[i] = true
		}
	}

	v.cursor = 0
	if keep != hierarchy.NoIndex {
		v.cursor = v.rowOf(keep)
	}
	v.ensureCursorVisible()
}

func (v *TreeView) walk(i hierarchy.Index, guide string, last bool, depth int) {
	prefix := ""
	next := guide
	if depth > 0 {
		if last {
			prefix, next = guide+"└── ", guide+"    "
		} else {
			prefix, next = guide+"├── ", guide+"│   "
		}
	}
	v.rows = append(v.rows, treeRow{index: i, prefix: prefix})
	kids := v.state.VisibleChildren(v.tree, i)
	for k, c := range kids {
		v.walk(c, next, k == len(kids)-1, depth+1)
	}
}

// rowOf returns the row of i or of its closest visible ancestor.
func (v *TreeView) rowOf(i hierarchy.Index) int {
	for i != hierarchy.NoIndex {
		for r, row := range v.rows {
			if row.index == i {
				return r
			}
		}
		i = v.tree.Node(i).Parent
	}
	return 0
}

// Len returns the number of rows.
func (v *TreeView) Len() int { return len(v.rows) }

// Cursor returns the cursor row.
func (v *TreeView) Cursor() int { return v.cursor }

// Selected returns the node under the cursor.
func (v *TreeView) Selected() (hierarchy.Index, bool) {
	if v.cursor < 0 || v.cursor >= len(v.rows) {
		return hierarchy.NoIndex, false
	}
	return v.rows[v.cursor].index, true
}

// Select moves the cursor to node i if it is visible.
func (v *TreeView) Select(i hierarchy.Index) bool {
	for r, row := range v.rows {
		if row.index == i {
			v.cursor = r
			v.ensureCursorVisible()
			return true
		}
	}
	return false
}

// Cursor movement. Every move clamps to the rows and scrolls the cursor
// into view.

// MoveDown moves the cursor one row down.
func (v *TreeView) MoveDown() { v.moveTo(v.cursor + 1) }
// MoveUp moves the cursor one row up.
func (v *TreeView) MoveUp() { v.moveTo(v.cursor - 1) }

// Top moves the cursor to the root row.
func (v *TreeView) Top() { v.moveTo(0) }

// Bottom moves the cursor to the last row.
func (v *TreeView) Bottom() { v.moveTo(len(v.rows) - 1) }

// PageDown moves the cursor one screen down.
func (v *TreeView) PageDown() { v.moveTo(v.cursor + v.height) }

// PageUp moves the cursor one screen up.
func (v *TreeView) PageUp() { v.moveTo(v.cursor - v.height) }

// Parent moves the cursor to the parent of the selected node.
func (v *TreeView) Parent() {
	i, ok := v.Selected()
	if !ok {
		return
	}
	if p := v.tree.Node(i).Parent; p != hierarchy.NoIndex {
		v.Select(p)
	}
}

func (v *TreeView) moveTo(r int) {
	if len(v.rows) == 0 {
		v.cursor = 0
		return
	}
	v.cursor = min(max(r, 0), len(v.rows)-1)
	v.ensureCursorVisible()
}

func (v *TreeView) ensureCursorVisible() {
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	if v.cursor >= v.offset+v.height {
		v.offset = v.cursor - v.height + 1
	}
	v.offset = max(min(v.offset, len(v.rows)-v.height), 0)
}

// visibleRange returns the rows on screen.
func (v *TreeView) visibleRange() (start, end int) {
	return v.offset, min(v.offset+v.height, len(v.rows))
}

// View renders the outline.
func (v *TreeView) View() string {
	if len(v.rows) == 0 {
		return ""
	}
	var sb strings.Builder
	start, end := v.visibleRange()
	for r := start; r < end; r++ {
		line := v.renderRow(v.rows[r], r == v.cursor)
		sb.WriteString(line)
		if r < end-1 {
			sb.WriteByte('\n')
		}
	}
	if len(v.rows) > v.height {
		sb.WriteByte('\n')
		sb.WriteString(v.theme.MutedText.Render(
			fmt.Sprintf(" %d-%d of %d", start+1, end, len(v.rows))))
	}
	return sb.String()
}

// indicator is the expand marker: ▸ for a node with hidden children, ▾ when
// expanded, • for a leaf.
func (v *TreeView) indicator(i hierarchy.Index) (string, lipgloss.Style) {
	n := v.tree.Node(i)
	switch {
	case n.IsLeaf():
		return "•", v.theme.LeafMark
	case v.state.HasCollapsedChildren(v.tree, i):
		return "▸", v.theme.CollapsedMark
	default:
		return "▾", v.theme.SecondaryText
	}
}

func (v *TreeView) renderRow(row treeRow, selected bool) string {
	n := v.tree.Node(row.index)
	width := max(v.width-1, 10)

	mark, markStyle := v.indicator(row.index)
	used := lipgloss.Width(row.prefix) + 2

	name := truncate(singleLine(n.Name), max(width-used, 1))
	nameStyle := v.theme.Base
	if v.match[row.index] {
		nameStyle = v.theme.MatchText
	}
	used += lipgloss.Width(name)

	var hint string
	if rest := width - used - 2; rest > 8 {
		if val, ok := n.Attr(v.hintKey()); ok && val != "" {
			hint = "  " + v.theme.MutedText.Render(truncate(singleLine(val), rest))
		}
	}

	line := v.theme.Guides.Render(row.prefix) + markStyle.Render(mark) + " " + nameStyle.Render(name) + hint
	if selected {
		return v.theme.Selected.Width(width).MaxWidth(width + 1).Render(line)
	}
	return line
}

func (v *TreeView) hintKey() string {
	if v.query.AttributeKey != "" {
		return v.query.AttributeKey
	}
	return search.DefaultAttributeKey
}
