package reconcile

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/metrics"
)

// Visual encoding shared by every renderer.
const (
	DefaultDuration = 750 * time.Millisecond
	NodeRadius      = 10.0
	LabelOffset     = 13.0
	// Vanish is the radius and opacity of an element that is entering or
	// leaving. Renderers treat it as invisible.
	Vanish = 1e-6

	FillCollapsed = "lightsteelblue"
	FillExpanded  = "#fff"
)

// NodeState is one end of a node transition.
type NodeState struct {
	Pos     r2.Vec  `json:"pos"`
	Radius  float64 `json:"r"`
	Opacity float64 `json:"opacity"`
}

// Node is the transition of a single node for one pass.
type Node struct {
	ID        hierarchy.ID    `json:"id"`
	Index     hierarchy.Index `json:"-"`
	Name      string          `json:"name"`
	Phase     Phase           `json:"phase"`
	From      NodeState       `json:"from"`
	To        NodeState       `json:"to"`
	Collapsed bool            `json:"collapsed"`
	// Removed nodes are exiting; they are dropped from the next frame.
	Removed bool `json:"removed,omitempty"`
}

// Fill is the circle colour: nodes hiding children behind a collapse stand
// out.
func (n Node) Fill() string {
	if n.Collapsed {
		return FillCollapsed
	}
	return FillExpanded
}

// LabelAnchor returns the text-anchor and x offset of the label. Collapsed
// nodes put the label on the left, everything else on the right.
func (n Node) LabelAnchor() (anchor string, dx float64) {
	if n.Collapsed {
		return "end", -LabelOffset
	}
	return "start", LabelOffset
}

// Edge is the transition of the link leading into a node. It is keyed by
// the child's id.
type Edge struct {
	ID      hierarchy.ID `json:"id"`
	Phase   Phase        `json:"phase"`
	From    layout.Curve `json:"-"`
	To      layout.Curve `json:"-"`
	Removed bool         `json:"removed,omitempty"`
}

// Frame is everything needed to draw one pass.
type Frame struct {
	Seq      int           `json:"seq"`
	Source   hierarchy.ID  `json:"source"`
	Duration time.Duration `json:"duration"`
	Nodes    []Node        `json:"nodes"`
	Edges    []Edge        `json:"edges"`
}

// Live returns the ids of the nodes still on screen after this frame.
func (f *Frame) Live() []hierarchy.ID {
	if f == nil {
		return nil
	}
	ids := make([]hierarchy.ID, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		if !n.Removed {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Node returns the transition for id.
func (f *Frame) Node(id hierarchy.ID) (Node, bool) {
	if f == nil {
		return Node{}, false
	}
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Input is the current pass as seen by Plan.
type Input struct {
	Tree   *hierarchy.Tree
	State  *hierarchy.State // supplies previous positions and collapse flags
	Layout layout.Result
	// Source is the node that triggered the pass. Entering elements grow out
	// of its previous position and exiting ones shrink into its new one.
	Source   hierarchy.Index
	Duration time.Duration
}

// Plan builds the frame that takes the screen from prev to cur. prev may be
// nil for the first pass, in which case everything enters. Plan does not
// modify its inputs.
func Plan(prev *Frame, cur Input) *Frame {
	defer metrics.TimerWithCallback(metrics.ReconcilePlan, func(d time.Duration) {
		debug.LogTiming("reconcile.Plan", d)
	})()

	t, st, res := cur.Tree, cur.State, cur.Layout
	frame := &Frame{
		Source:   t.Node(cur.Source).ID,
		Duration: cur.Duration,
	}
	if frame.Duration <= 0 {
		frame.Duration = DefaultDuration
	}

	prevNodes := make(map[hierarchy.ID]Node)
	prevEdges := make(map[hierarchy.ID]Edge)
	if prev != nil {
		frame.Seq = prev.Seq + 1
		for _, n := range prev.Nodes {
			if !n.Removed {
				prevNodes[n.ID] = n
			}
		}
		for _, e := range prev.Edges {
			if !e.Removed {
				prevEdges[e.ID] = e
			}
		}
	}

	origin := st.Prev(cur.Source)
	target, ok := res.Pos[cur.Source]
	if !ok {
		target = st.Pos(cur.Source)
	}

	ids := make([]hierarchy.ID, len(res.Order))
	for k, i := range res.Order {
		ids[k] = t.Node(i).ID
	}
	sets := Diff(prev.Live(), ids)
	entering := make(map[hierarchy.ID]bool, len(sets.Enter))
	for _, id := range sets.Enter {
		entering[id] = true
	}

	shown := NodeState{Radius: NodeRadius, Opacity: 1}
	for _, i := range res.Order {
		n := t.Node(i)
		to := shown
		to.Pos = res.Pos[i]
		node := Node{
			ID:        n.ID,
			Index:     i,
			Name:      n.Name,
			To:        to,
			Collapsed: st.HasCollapsedChildren(t, i),
		}
		if entering[n.ID] {
			node.Phase = Enter
			node.From = NodeState{Pos: origin, Radius: Vanish, Opacity: 0}
		} else {
			node.Phase = Update
			node.From = prevNodes[n.ID].To
		}
		frame.Nodes = append(frame.Nodes, node)
	}
	for _, id := range sets.Exit {
		old := prevNodes[id]
		old.Phase = Exit
		old.Index = hierarchy.NoIndex
		old.From = old.To
		old.To = NodeState{Pos: target, Radius: Vanish, Opacity: Vanish}
		old.Removed = true
		frame.Nodes = append(frame.Nodes, old)
	}

	collapsedAtOrigin := layout.Diagonal(origin, origin)
	live := make(map[hierarchy.ID]bool, len(res.Links))
	for _, l := range res.Links {
		id := t.Node(l.Child).ID
		live[id] = true
		e := Edge{ID: id, To: l.Curve}
		if old, ok := prevEdges[id]; ok {
			e.Phase = Update
			e.From = old.To
		} else {
			e.Phase = Enter
			e.From = collapsedAtOrigin
		}
		frame.Edges = append(frame.Edges, e)
	}
	collapsedAtTarget := layout.Diagonal(target, target)
	if prev != nil {
		for _, old := range prev.Edges {
			if old.Removed || live[old.ID] {
				continue
			}
			frame.Edges = append(frame.Edges, Edge{
				ID:      old.ID,
				Phase:   Exit,
				From:    old.To,
				To:      collapsedAtTarget,
				Removed: true,
			})
		}
	}

	debug.Log("reconcile: seq=%d enter=%d update=%d exit=%d", frame.Seq, len(sets.Enter), len(sets.Update), len(sets.Exit))
	return frame
}
