package reconcile_test

import (
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/reconcile"
	"github.com/vanderheijden86/treescope/pkg/testutil"
)

// =============================================================================
// Diff
// =============================================================================

func TestDiff(t *testing.T) {
	tests := []struct {
		name                string
		prev, cur           []hierarchy.ID
		enter, update, exit []hierarchy.ID
	}{
		{"first pass", nil, []hierarchy.ID{1, 2, 3}, []hierarchy.ID{1, 2, 3}, nil, nil},
		{"unchanged", []hierarchy.ID{1, 2}, []hierarchy.ID{1, 2}, nil, []hierarchy.ID{1, 2}, nil},
		{"collapse", []hierarchy.ID{1, 2, 3, 4}, []hierarchy.ID{1, 2, 3}, nil, []hierarchy.ID{1, 2, 3}, []hierarchy.ID{4}},
		{"mixed", []hierarchy.ID{1, 5, 6}, []hierarchy.ID{7, 1, 8}, []hierarchy.ID{7, 8}, []hierarchy.ID{1}, []hierarchy.ID{5, 6}},
		{"all gone", []hierarchy.ID{1, 2}, nil, nil, nil, []hierarchy.ID{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := reconcile.Diff(tt.prev, tt.cur)
			if !slices.Equal(s.Enter, tt.enter) {
				t.Errorf("enter: expected %v, got %v", tt.enter, s.Enter)
			}
			if !slices.Equal(s.Update, tt.update) {
				t.Errorf("update: expected %v, got %v", tt.update, s.Update)
			}
			if !slices.Equal(s.Exit, tt.exit) {
				t.Errorf("exit: expected %v, got %v", tt.exit, s.Exit)
			}
		})
	}
}

// =============================================================================
// Plan
// =============================================================================

type harness struct {
	tree  *hierarchy.Tree
	st    *hierarchy.State
	frame *reconcile.Frame
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tree := testutil.MustBuild(t, testutil.Scenario())
	st := hierarchy.NewState(tree)
	st.SetPrev(tree.Root(), r2.Vec{X: 0, Y: 375})
	return &harness{tree: tree, st: st}
}

func (h *harness) pass(source hierarchy.Index) *reconcile.Frame {
	res := layout.Compute(h.tree, h.st, layout.DefaultSpacing())
	h.frame = reconcile.Plan(h.frame, reconcile.Input{
		Tree:   h.tree,
		State:  h.st,
		Layout: res,
		Source: source,
	})
	res.Store(h.st)
	h.st.Commit(res.Order)
	return h.frame
}

func byName(f *reconcile.Frame, name string) reconcile.Node {
	for _, n := range f.Nodes {
		if n.Name == name {
			return n
		}
	}
	return reconcile.Node{}
}

func TestPlan_FirstPassEntersFromRootOrigin(t *testing.T) {
	h := newHarness(t)
	f := h.pass(h.tree.Root())

	if f.Seq != 0 || f.Duration != reconcile.DefaultDuration {
		t.Errorf("unexpected seq/duration %d/%v", f.Seq, f.Duration)
	}
	if len(f.Nodes) != 4 || len(f.Edges) != 3 {
		t.Fatalf("expected 4 nodes and 3 edges, got %d and %d", len(f.Nodes), len(f.Edges))
	}
	origin := r2.Vec{X: 0, Y: 375}
	for _, n := range f.Nodes {
		if n.Phase != reconcile.Enter {
			t.Errorf("%s: expected enter, got %v", n.Name, n.Phase)
		}
		if n.From.Pos != origin || n.From.Radius != reconcile.Vanish || n.From.Opacity != 0 {
			t.Errorf("%s: unexpected start %+v", n.Name, n.From)
		}
		if n.To.Radius != reconcile.NodeRadius || n.To.Opacity != 1 {
			t.Errorf("%s: unexpected end %+v", n.Name, n.To)
		}
	}
	for _, e := range f.Edges {
		if e.From != layout.Diagonal(origin, origin) {
			t.Errorf("edge %d should enter collapsed at the origin", e.ID)
		}
	}
}

func TestPlan_CollapseExitsIntoSource(t *testing.T) {
	h := newHarness(t)
	h.pass(h.tree.Root())

	b := testutil.Find(t, h.tree, "b")
	bPos := h.st.Pos(b)
	h.st.Toggle(b)
	f := h.pass(b)

	if f.Seq != 1 {
		t.Errorf("expected seq 1, got %d", f.Seq)
	}
	c := byName(f, "c")
	if c.Phase != reconcile.Exit || !c.Removed {
		t.Fatalf("expected c to exit, got %+v", c)
	}
	if c.To.Pos != bPos || c.To.Radius != reconcile.Vanish {
		t.Errorf("c should shrink into b at %v, got %+v", bPos, c.To)
	}
	if c.From.Pos != (r2.Vec{X: 700, Y: 50}) {
		t.Errorf("c should leave from its last rendered position, got %v", c.From.Pos)
	}

	bn := byName(f, "b")
	if bn.Phase != reconcile.Update || !bn.Collapsed || bn.Fill() != reconcile.FillCollapsed {
		t.Errorf("unexpected b %+v", bn)
	}
	if anchor, dx := bn.LabelAnchor(); anchor != "end" || dx != -reconcile.LabelOffset {
		t.Errorf("collapsed label should be end/-13, got %s/%v", anchor, dx)
	}

	var exits int
	for _, e := range f.Edges {
		if e.Phase == reconcile.Exit {
			exits++
			if e.ID != c.ID || e.To != layout.Diagonal(bPos, bPos) {
				t.Errorf("unexpected exiting edge %+v", e)
			}
		}
	}
	if exits != 1 {
		t.Errorf("expected one exiting edge, got %d", exits)
	}
}

func TestPlan_ExpandEntersFromSourcePrevious(t *testing.T) {
	h := newHarness(t)
	h.pass(h.tree.Root())
	b := testutil.Find(t, h.tree, "b")
	h.st.Toggle(b)
	h.pass(b)

	bPrev := h.st.Prev(b)
	h.st.Toggle(b)
	f := h.pass(b)

	c := byName(f, "c")
	if c.Phase != reconcile.Enter || c.From.Pos != bPrev {
		t.Errorf("c should grow out of b's previous position %v, got %+v", bPrev, c)
	}
	if live := f.Live(); len(live) != 4 {
		t.Errorf("expected 4 live nodes, got %v", live)
	}
	// The exit from the previous frame is gone.
	for _, n := range f.Nodes {
		if n.Removed {
			t.Errorf("unexpected removed node %s", n.Name)
		}
	}
}

func TestPlan_UpdateStartsAtPreviousRender(t *testing.T) {
	h := newHarness(t)
	first := h.pass(h.tree.Root())
	f := h.pass(h.tree.Root())

	for _, n := range f.Nodes {
		old, ok := first.Node(n.ID)
		if !ok {
			t.Fatalf("node %d missing from first frame", n.ID)
		}
		if n.Phase != reconcile.Update || n.From != old.To {
			t.Errorf("%s: expected update from %+v, got %+v", n.Name, old.To, n)
		}
	}
}

func TestPlan_IDsStableAcrossPasses(t *testing.T) {
	h := newHarness(t)
	first := h.pass(h.tree.Root())
	second := h.pass(h.tree.Root())
	if !slices.Equal(first.Live(), second.Live()) {
		t.Errorf("ids changed: %v then %v", first.Live(), second.Live())
	}
}
