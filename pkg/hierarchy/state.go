package hierarchy

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// State is the per-node view state kept apart from the immutable Tree.
// Slices are indexed by arena Index.
//
// Collapsing a node only clears its own expanded flag; descendants keep
// theirs, so expanding again restores the exact prior subtree.
type State struct {
	expanded []bool
	hidden   []bool
	pos      []r2.Vec
	prev     []r2.Vec
}

// NewState returns the load-time state for t: every node expanded, none
// hidden, all positions at the origin.
func NewState(t *Tree) *State {
	n := t.Len()
	s := &State{
		expanded: make([]bool, n),
		hidden:   make([]bool, n),
		pos:      make([]r2.Vec, n),
		prev:     make([]r2.Vec, n),
	}
	for i := range s.expanded {
		s.expanded[i] = true
	}
	return s
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	return &State{
		expanded: append([]bool(nil), s.expanded...),
		hidden:   append([]bool(nil), s.hidden...),
		pos:      append([]r2.Vec(nil), s.pos...),
		prev:     append([]r2.Vec(nil), s.prev...),
	}
}

// Expanded reports whether the children of i are shown.
func (s *State) Expanded(i Index) bool { return s.expanded[i] }

// Hidden reports whether the filter removed i from the visible tree.
func (s *State) Hidden(i Index) bool { return s.hidden[i] }

// SetHidden is used by the filter pass, which recomputes every flag at once.
func (s *State) SetHidden(i Index, hidden bool) {
	s.hidden[i] = hidden
}

// Toggle flips the expanded flag of i and returns the new value.
func (s *State) Toggle(i Index) bool {
	s.expanded[i] = !s.expanded[i]
	return s.expanded[i]
}

// Expand shows the children of i.
func (s *State) Expand(i Index) { s.expanded[i] = true }

// Collapse hides the children of i.
func (s *State) Collapse(i Index) { s.expanded[i] = false }

// ExpandAll sets every node expanded.
func (s *State) ExpandAll() {
	for i := range s.expanded {
		s.expanded[i] = true
	}
}

// CollapseAll collapses every node that has children, leaving the root
// expanded so its direct children stay reachable.
func (s *State) CollapseAll(t *Tree) {
	for i := range s.expanded {
		s.expanded[i] = t.nodes[i].IsLeaf()
	}
	if t.Len() > 0 {
		s.expanded[t.Root()] = true
	}
}

// HasCollapsedChildren reports whether i hides children behind a collapse.
// Renderers mark such nodes distinctly.
func (s *State) HasCollapsedChildren(t *Tree, i Index) bool {
	return !s.expanded[i] && !t.nodes[i].IsLeaf()
}

// Pos returns the position computed by the latest layout pass.
func (s *State) Pos(i Index) r2.Vec { return s.pos[i] }

// Prev returns the position a node was last rendered at.
func (s *State) Prev(i Index) r2.Vec { return s.prev[i] }

// SetPos records a freshly computed position.
func (s *State) SetPos(i Index, p r2.Vec) {
	s.pos[i] = p
}

// SetPrev overrides the previous position; used to seed the root before the
// first pass.
func (s *State) SetPrev(i Index, p r2.Vec) {
	s.prev[i] = p
}

// Commit copies the current position of every listed node into its previous
// position so the next transition starts from where this pass ended.
func (s *State) Commit(visible []Index) {
	for _, i := range visible {
		s.prev[i] = s.pos[i]
	}
}

// Visible returns the nodes eligible for layout and rendering in preorder.
// A collapsed node's descendants are skipped regardless of their own flags,
// as is any hidden node together with its subtree.
func (s *State) Visible(t *Tree) []Index {
	if t.Len() == 0 || s.hidden[t.Root()] {
		return nil
	}
	out := make([]Index, 0, t.Len())
	stack := []Index{t.Root()}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, i)
		if !s.expanded[i] {
			continue
		}
		children := t.nodes[i].Children
		for c := len(children) - 1; c >= 0; c-- {
			if !s.hidden[children[c]] {
				stack = append(stack, children[c])
			}
		}
	}
	return out
}

// VisibleChildren returns the children of i that take part in layout.
func (s *State) VisibleChildren(t *Tree, i Index) []Index {
	if !s.expanded[i] {
		return nil
	}
	var out []Index
	for _, c := range t.nodes[i].Children {
		if !s.hidden[c] {
			out = append(out, c)
		}
	}
	return out
}

// Link is a rendered parent-child edge.
type Link struct {
	Parent Index
	Child  Index
}

// Links returns the edges between visible nodes, in preorder of the child.
func (s *State) Links(t *Tree) []Link {
	visible := s.Visible(t)
	if len(visible) == 0 {
		return nil
	}
	links := make([]Link, 0, len(visible)-1)
	for _, i := range visible[1:] {
		links = append(links, Link{Parent: t.nodes[i].Parent, Child: i})
	}
	return links
}
