// Package explorer is the interaction controller. A Session owns one tree,
// its view state and the last rendered frame, and turns user events into
// new frames: each event is a plain state change followed by exactly one
// layout and reconcile pass.
//
// A Session is not safe for concurrent use; callers serialize events.
package explorer

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/detail"
	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/reconcile"
	"github.com/vanderheijden86/treescope/pkg/render"
	"github.com/vanderheijden86/treescope/pkg/search"
)

var (
	// ErrNoTree is returned by Dispatch and Detail before the first Load.
	ErrNoTree = errors.New("no tree loaded")
	// ErrUnknownNode is returned for an id that is not in the current tree.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownEvent is returned for a nil or unsupported Event.
	ErrUnknownEvent = errors.New("unknown event")
)

// Options configures a Session.
type Options struct {
	Spacing  layout.Spacing
	Surface  r2.Vec // drawing surface size in screen units
	Duration time.Duration
	MinScale float64
	MaxScale float64
	// AttributeKey is the attribute searched by FieldAttribute queries.
	AttributeKey string
}

// DefaultOptions matches the browser page: 350/50 spacing on a 1200×800
// surface with 750ms transitions.
func DefaultOptions() Options {
	return Options{
		Spacing:      layout.DefaultSpacing(),
		Surface:      r2.Vec{X: render.DefaultWidth, Y: render.DefaultHeight},
		Duration:     reconcile.DefaultDuration,
		MinScale:     DefaultMinScale,
		MaxScale:     DefaultMaxScale,
		AttributeKey: search.DefaultAttributeKey,
	}
}

// Pass is the outcome of one dispatched event.
type Pass struct {
	Event  string
	Source hierarchy.ID
	Frame  *reconcile.Frame
	// Animated is false for view-only events (pan, zoom) whose frame is the
	// previous one redrawn under a new transform.
	Animated  bool
	Transform Transform
	Detail    *detail.Panel // set for clicks
	Matches   int           // set for queries
}

// Session is one open explorer.
type Session struct {
	opts      Options
	tree      *hierarchy.Tree
	state     *hierarchy.State
	spacing   layout.Spacing
	query     search.Query
	transform Transform
	frame     *reconcile.Frame
	animated  bool // whether frame still has a transition to play
	selected  hierarchy.ID
	nextID    hierarchy.ID
}

// New creates an empty session. Call Load before dispatching events.
func New(opts Options) *Session {
	d := DefaultOptions()
	if opts.Spacing.Validate() != nil {
		opts.Spacing = d.Spacing
	}
	if opts.Surface.X <= 0 || opts.Surface.Y <= 0 {
		opts.Surface = d.Surface
	}
	if opts.Duration <= 0 {
		opts.Duration = d.Duration
	}
	if opts.AttributeKey == "" {
		opts.AttributeKey = d.AttributeKey
	}
	t := Identity()
	if opts.MinScale > 0 {
		t.MinScale = opts.MinScale
	}
	if opts.MaxScale > 0 {
		t.MaxScale = opts.MaxScale
	}
	return &Session{
		opts:      opts,
		spacing:   opts.Spacing,
		transform: t,
		query:     search.Query{Field: search.FieldName, AttributeKey: opts.AttributeKey},
		nextID:    1,
	}
}

// Load parses a payload and replaces the current tree with it. Ids of the
// new tree start above every id handed out before, so nodes of the old tree
// animate out and the new ones grow from the root's starting point. The
// active query is re-applied. On error the current tree is kept.
func (s *Session) Load(data []byte) (*Pass, error) {
	tree, err := hierarchy.Build(data, hierarchy.WithFirstID(s.nextID))
	if err != nil {
		return nil, err
	}
	return s.LoadTree(tree), nil
}

// LoadTree installs an already built tree. Its ids must not collide with
// those of a previously loaded tree; Load takes care of that.
func (s *Session) LoadTree(tree *hierarchy.Tree) *Pass {
	s.tree = tree
	s.state = hierarchy.NewState(tree)
	s.selected = 0
	if id := tree.MaxID() + 1; id > s.nextID {
		s.nextID = id
	}
	// The first pass grows out of the left edge, halfway down the surface.
	s.state.SetPrev(tree.Root(), r2.Vec{X: 0, Y: s.opts.Surface.Y / 2})

	p := &Pass{Event: "load"}
	if !s.query.Empty() {
		p.Matches = search.Filter(tree, s.state, s.query)
	}
	s.run(p, tree.Root())
	debug.Log("explorer: loaded %d nodes, ids %d..%d", tree.Len(), tree.Node(tree.Root()).ID, tree.MaxID())
	return p
}

// Dispatch applies ev and returns the resulting pass.
func (s *Session) Dispatch(ev Event) (*Pass, error) {
	if s.tree == nil {
		return nil, ErrNoTree
	}
	if ev == nil {
		return nil, ErrUnknownEvent
	}
	defer debug.LogEnterExit("explorer.Dispatch " + ev.eventName())()
	debug.Dump("explorer: event", ev)

	p := &Pass{Event: ev.eventName()}
	root := s.tree.Root()

	switch e := ev.(type) {
	case NodeClicked:
		i, ok := s.tree.Lookup(e.ID)
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownNode, e.ID)
		}
		s.state.Toggle(i)
		s.selected = e.ID
		panel := detail.Project(s.tree.Node(i))
		p.Detail = &panel
		s.run(p, i)

	case SpacingChanged:
		if err := e.Spacing.Validate(); err != nil {
			return nil, err
		}
		s.spacing = e.Spacing
		s.run(p, root)

	case QueryChanged:
		q := e.Query
		if q.AttributeKey == "" {
			q.AttributeKey = s.opts.AttributeKey
		}
		s.query = q
		p.Matches = search.Filter(s.tree, s.state, q)
		s.run(p, root)

	case ZoomRequested:
		center := e.Center
		if center == (r2.Vec{}) {
			center = r2.Scale(0.5, s.opts.Surface)
		}
		s.transform = s.transform.ZoomBy(e.Factor, center)
		s.still(p)

	case Panned:
		s.transform = s.transform.PanBy(e.Delta)
		s.still(p)

	case Reset:
		s.state.ExpandAll()
		s.query.Text = ""
		search.Filter(s.tree, s.state, s.query)
		s.transform = Identity().withLimits(s.transform)
		s.spacing = s.opts.Spacing
		s.run(p, root)

	case ExpandAll:
		s.state.ExpandAll()
		s.run(p, root)

	case CollapseAll:
		s.state.CollapseAll(s.tree)
		s.run(p, root)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return p, nil
}

// run performs the single layout and reconcile pass for p.
func (s *Session) run(p *Pass, source hierarchy.Index) {
	res := layout.Compute(s.tree, s.state, s.spacing)
	s.frame = reconcile.Plan(s.frame, reconcile.Input{
		Tree:     s.tree,
		State:    s.state,
		Layout:   res,
		Source:   source,
		Duration: s.opts.Duration,
	})
	res.Store(s.state)
	s.state.Commit(res.Order)

	p.Source = s.tree.Node(source).ID
	p.Frame = s.frame
	p.Animated = true
	p.Transform = s.transform
	s.animated = true
}

// still reports the current frame under the new transform. Its transition
// already played, so it is drawn in its final state from now on.
func (s *Session) still(p *Pass) {
	s.animated = false
	p.Source = s.tree.Node(s.tree.Root()).ID
	p.Frame = s.frame
	p.Transform = s.transform
}

func (t Transform) withLimits(from Transform) Transform {
	t.MinScale, t.MaxScale = from.MinScale, from.MaxScale
	return t
}

// Loaded reports whether a tree is installed.
func (s *Session) Loaded() bool { return s.tree != nil }

// Tree returns the loaded tree, or nil.
func (s *Session) Tree() *hierarchy.Tree { return s.tree }

// State returns the UI state of the loaded tree.
func (s *Session) State() *hierarchy.State { return s.state }

// Frame returns the most recent reconciled frame.
func (s *Session) Frame() *reconcile.Frame { return s.frame }

// Animated reports whether Frame came from a layout pass whose transition
// should be drawn. It is false after a pan or zoom.
func (s *Session) Animated() bool { return s.frame != nil && s.animated }

// Spacing returns the active layout spacing.
func (s *Session) Spacing() layout.Spacing { return s.spacing }

// Query returns the active search query.
func (s *Session) Query() search.Query { return s.query }

// Transform returns the current pan/zoom.
func (s *Session) Transform() Transform { return s.transform }

// Selected returns the id of the last clicked node, or 0.
func (s *Session) Selected() hierarchy.ID { return s.selected }

// Options returns the options the session was created with, after defaults.
func (s *Session) Options() Options { return s.opts }

// Visible returns the nodes currently on screen in preorder.
func (s *Session) Visible() []hierarchy.Index {
	if s.tree == nil {
		return nil
	}
	return s.state.Visible(s.tree)
}

// Detail returns the panel for id without changing any state.
func (s *Session) Detail(id hierarchy.ID) (detail.Panel, error) {
	if s.tree == nil {
		return detail.Panel{}, ErrNoTree
	}
	i, ok := s.tree.Lookup(id)
	if !ok {
		return detail.Panel{}, fmt.Errorf("%w: id %d", ErrUnknownNode, id)
	}
	return detail.Project(s.tree.Node(i)), nil
}

// RenderOptions returns the render options for the current view.
func (s *Session) RenderOptions() render.Options {
	o := render.DefaultOptions()
	o.Width = int(s.opts.Surface.X)
	o.Height = int(s.opts.Surface.Y)
	o.Translate = s.transform.Translate
	o.Scale = s.transform.Scale
	return o
}
