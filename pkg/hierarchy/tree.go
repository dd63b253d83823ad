// Package hierarchy holds the explorable tree: an immutable arena of nodes
// built once from a payload, plus a parallel table of per-node view state.
//
// Nodes reference each other by arena Index, never by pointer. The parent
// link is a plain back-reference used for ancestor walks; children are owned
// by exactly one parent.
package hierarchy

import (
	"iter"
	"slices"
	"strings"
)

// Index addresses a node inside a Tree's arena.
type Index int

// NoIndex marks the absent parent of the root.
const NoIndex Index = -1

// ID is the stable identity of a node. It is assigned once at Build time and
// is what frames are keyed by across layout passes.
type ID int

// Attr is one auxiliary key/value pair carried by a node, already converted
// to its display form.
type Attr struct {
	Key   string
	Value string
}

// Node is one entity of the source payload.
type Node struct {
	ID       ID
	Name     string
	Attrs    []Attr
	Parent   Index
	Children []Index
	Depth    int
}

// Attr returns the value for key and whether it was present.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// IsLeaf reports whether the node has no children in the source data.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Tree is the immutable hierarchy. The root always lives at index 0.
type Tree struct {
	nodes []Node
	byID  map[ID]Index
}

// Root returns the root index.
func (t *Tree) Root() Index {
	return 0
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node at i. It panics on an out-of-range index, which is a
// programming error.
func (t *Tree) Node(i Index) *Node {
	return &t.nodes[i]
}

// Lookup resolves a stable id to its arena index.
func (t *Tree) Lookup(id ID) (Index, bool) {
	i, ok := t.byID[id]
	return i, ok
}

// MaxID returns the largest id assigned in this tree. A session rebuilding
// from a fresh payload starts the next tree above it.
func (t *Tree) MaxID() ID {
	var max ID
	for i := range t.nodes {
		if t.nodes[i].ID > max {
			max = t.nodes[i].ID
		}
	}
	return max
}

// Descendants yields every node exactly once in preorder, root first.
// The sequence is deterministic and may be ranged over repeatedly.
func (t *Tree) Descendants() iter.Seq[Index] {
	return func(yield func(Index) bool) {
		if len(t.nodes) == 0 {
			return
		}
		stack := []Index{t.Root()}
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(i) {
				return
			}
			children := t.nodes[i].Children
			for c := len(children) - 1; c >= 0; c-- {
				stack = append(stack, children[c])
			}
		}
	}
}

// Ancestors yields the parent chain of i, nearest first, ending at the root.
func (t *Tree) Ancestors(i Index) iter.Seq[Index] {
	return func(yield func(Index) bool) {
		for p := t.nodes[i].Parent; p != NoIndex; p = t.nodes[p].Parent {
			if !yield(p) {
				return
			}
		}
	}
}

// IsAncestor reports whether a is a proper ancestor of d.
func (t *Tree) IsAncestor(a, d Index) bool {
	for p := range t.Ancestors(d) {
		if p == a {
			return true
		}
	}
	return false
}

// Path returns the names from the root down to i joined with "/".
func (t *Tree) Path(i Index) string {
	var names []string
	names = append(names, t.nodes[i].Name)
	for p := range t.Ancestors(i) {
		names = append(names, t.nodes[p].Name)
	}
	slices.Reverse(names)
	return strings.Join(names, "/")
}
