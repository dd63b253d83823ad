package layout

import (
	"github.com/vanderheijden86/treescope/pkg/hierarchy"
)

// Separation between neighbouring nodes, in ReferenceUnit multiples.
const (
	SiblingSeparation = 2.0
	CousinSeparation  = 2.5
)

const none = -1

// wnode is the working record of the Buchheim/Walker tidy-tree pass. It
// references other records by position in tidy.nodes.
type wnode struct {
	idx      hierarchy.Index
	parent   int
	children []int
	pos      int // position among its siblings

	ancestor int // a
	defAnc   int // A, default ancestor while apportioning children
	thread   int // t

	prelim float64 // z
	mod    float64 // m
	change float64 // c
	shift  float64 // s
}

// tidy runs the linear-time tidy tree algorithm over the visible part of a
// hierarchy. Record 0 is a synthetic parent of the layout root.
type tidy struct {
	nodes []wnode
}

func newTidy(t *hierarchy.Tree, st *hierarchy.State) *tidy {
	l := &tidy{}
	if t.Len() == 0 || st.Hidden(t.Root()) {
		return l
	}
	l.nodes = append(l.nodes, wnode{idx: hierarchy.NoIndex, parent: none, ancestor: 0, defAnc: none, thread: none})
	l.add(t, st, t.Root(), 0, 0)
	return l
}

func (l *tidy) add(t *hierarchy.Tree, st *hierarchy.State, i hierarchy.Index, parent, pos int) int {
	self := len(l.nodes)
	l.nodes = append(l.nodes, wnode{
		idx:      i,
		parent:   parent,
		pos:      pos,
		ancestor: self,
		defAnc:   none,
		thread:   none,
	})
	l.nodes[parent].children = append(l.nodes[parent].children, self)
	for k, c := range st.VisibleChildren(t, i) {
		l.add(t, st, c, self, k)
	}
	return self
}

// run computes the abstract vertical coordinate of every record, in units of
// one node.
func (l *tidy) run() map[hierarchy.Index]float64 {
	out := make(map[hierarchy.Index]float64, len(l.nodes))
	if len(l.nodes) < 2 {
		return out
	}
	l.firstWalk(1)
	l.nodes[0].mod = -l.nodes[1].prelim
	l.secondWalk(1, out)
	return out
}

func (l *tidy) separation(a, b int) float64 {
	if l.nodes[a].parent == l.nodes[b].parent {
		return SiblingSeparation
	}
	return CousinSeparation
}

// firstWalk is a postorder pass assigning preliminary coordinates and
// modifiers.
func (l *tidy) firstWalk(v int) {
	for _, c := range l.nodes[v].children {
		l.firstWalk(c)
	}

	n := &l.nodes[v]
	p := &l.nodes[n.parent]
	w := none
	if n.pos > 0 {
		w = p.children[n.pos-1]
	}

	if len(n.children) > 0 {
		l.executeShifts(v)
		first, last := n.children[0], n.children[len(n.children)-1]
		mid := (l.nodes[first].prelim + l.nodes[last].prelim) / 2
		if w != none {
			n.prelim = l.nodes[w].prelim + l.separation(v, w)
			n.mod = n.prelim - mid
		} else {
			n.prelim = mid
		}
	} else if w != none {
		n.prelim = l.nodes[w].prelim + l.separation(v, w)
	}

	anc := p.defAnc
	if anc == none {
		anc = p.children[0]
	}
	p.defAnc = l.apportion(v, w, anc)
}

func (l *tidy) secondWalk(v int, out map[hierarchy.Index]float64) {
	n := &l.nodes[v]
	out[n.idx] = n.prelim + l.nodes[n.parent].mod
	n.mod += l.nodes[n.parent].mod
	for _, c := range n.children {
		l.secondWalk(c, out)
	}
}

// apportion pushes the subtree rooted at v right until its left contour
// clears the right contour of the subtrees to its left, spreading the shift
// over the siblings in between.
func (l *tidy) apportion(v, w, ancestor int) int {
	if w == none {
		return ancestor
	}
	nd := l.nodes
	vip, vop := v, v
	vim := w
	vom := nd[nd[v].parent].children[0]
	sip, sop := nd[vip].mod, nd[vop].mod
	sim, som := nd[vim].mod, nd[vom].mod

	for {
		vim = l.nextRight(vim)
		vip = l.nextLeft(vip)
		if vim == none || vip == none {
			break
		}
		vom = l.nextLeft(vom)
		vop = l.nextRight(vop)
		nd[vop].ancestor = v
		shift := nd[vim].prelim + sim - nd[vip].prelim - sip + l.separation(vim, vip)
		if shift > 0 {
			l.moveSubtree(l.nextAncestor(vim, v, ancestor), v, shift)
			sip += shift
			sop += shift
		}
		sim += nd[vim].mod
		sip += nd[vip].mod
		som += nd[vom].mod
		sop += nd[vop].mod
	}

	if vim != none && l.nextRight(vop) == none {
		nd[vop].thread = vim
		nd[vop].mod += sim - sop
	}
	if vip != none && l.nextLeft(vom) == none {
		nd[vom].thread = vip
		nd[vom].mod += sip - som
		ancestor = v
	}
	return ancestor
}

func (l *tidy) nextLeft(v int) int {
	if c := l.nodes[v].children; len(c) > 0 {
		return c[0]
	}
	return l.nodes[v].thread
}

func (l *tidy) nextRight(v int) int {
	if c := l.nodes[v].children; len(c) > 0 {
		return c[len(c)-1]
	}
	return l.nodes[v].thread
}

func (l *tidy) moveSubtree(wm, wp int, shift float64) {
	change := shift / float64(l.nodes[wp].pos-l.nodes[wm].pos)
	l.nodes[wp].change -= change
	l.nodes[wp].shift += shift
	l.nodes[wm].change += change
	l.nodes[wp].prelim += shift
	l.nodes[wp].mod += shift
}

func (l *tidy) executeShifts(v int) {
	var shift, change float64
	children := l.nodes[v].children
	for k := len(children) - 1; k >= 0; k-- {
		w := &l.nodes[children[k]]
		w.prelim += shift
		w.mod += shift
		change += w.change
		shift += w.shift + change
	}
}

func (l *tidy) nextAncestor(vim, v, ancestor int) int {
	a := l.nodes[vim].ancestor
	if l.nodes[a].parent == l.nodes[v].parent {
		return a
	}
	return ancestor
}
