// Package layout positions the visible part of a hierarchy as a horizontal
// tidy tree: depth grows left to right, siblings stack top to bottom and no
// two subtrees overlap.
//
// Positions use X for the horizontal (depth) axis and Y for the vertical
// (sibling) axis, both in canvas units before any pan/zoom transform.
package layout

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/metrics"
)

// ReferenceUnit is the nominal node size the tidy pass works in. The
// vertical spacing control is expressed relative to it.
const ReferenceUnit = 50.0

// Default spacing values.
const (
	DefaultHorizontal = 350.0
	DefaultVertical   = 50.0
)

// ErrInvalidSpacing is returned by Spacing.Validate.
var ErrInvalidSpacing = errors.New("spacing must be positive")

// Spacing holds the two user-tunable layout parameters.
type Spacing struct {
	Horizontal float64 `json:"horizontal" yaml:"horizontal" toml:"horizontal"` // distance per depth level
	Vertical   float64 `json:"vertical" yaml:"vertical" toml:"vertical"`       // sibling spacing, ReferenceUnit = 1:1
}

// DefaultSpacing returns 350 horizontal, 50 vertical.
func DefaultSpacing() Spacing {
	return Spacing{Horizontal: DefaultHorizontal, Vertical: DefaultVertical}
}

// Validate rejects non-positive values.
func (s Spacing) Validate() error {
	if !(s.Horizontal > 0) || !(s.Vertical > 0) {
		return fmt.Errorf("%w: horizontal=%v vertical=%v", ErrInvalidSpacing, s.Horizontal, s.Vertical)
	}
	return nil
}

// Link is one rendered edge with its curve.
type Link struct {
	Parent hierarchy.Index
	Child  hierarchy.Index
	Curve  Curve
}

// Result is the output of one layout pass.
type Result struct {
	Order []hierarchy.Index // visible nodes, preorder
	Pos   map[hierarchy.Index]r2.Vec
	Links []Link
}

// Compute lays out the visible nodes of t. The root lands at the origin,
// every node sits at exactly depth×Horizontal on X, and Y is the tidy-tree
// baseline scaled by Vertical/ReferenceUnit. Compute does not modify st and
// returns the same result for the same inputs.
func Compute(t *hierarchy.Tree, st *hierarchy.State, sp Spacing) Result {
	defer metrics.TimerWithCallback(metrics.LayoutCompute, func(d time.Duration) {
		debug.LogTiming("layout.Compute", d)
	})()

	order := st.Visible(t)
	res := Result{
		Order: order,
		Pos:   make(map[hierarchy.Index]r2.Vec, len(order)),
	}
	if len(order) == 0 {
		return res
	}

	baseline := newTidy(t, st).run()
	scale := sp.Vertical / ReferenceUnit
	for _, i := range order {
		res.Pos[i] = r2.Vec{
			X: float64(t.Node(i).Depth) * sp.Horizontal,
			Y: baseline[i] * ReferenceUnit * scale,
		}
	}

	links := st.Links(t)
	res.Links = make([]Link, len(links))
	for k, l := range links {
		res.Links[k] = Link{
			Parent: l.Parent,
			Child:  l.Child,
			Curve:  Diagonal(res.Pos[l.Parent], res.Pos[l.Child]),
		}
	}
	return res
}

// Store writes the computed positions into st.
func (r Result) Store(st *hierarchy.State) {
	for i, p := range r.Pos {
		st.SetPos(i, p)
	}
}

// Bounds returns the bounding box of all positions. ok is false for an empty
// result.
func (r Result) Bounds() (lo, hi r2.Vec, ok bool) {
	for k, i := range r.Order {
		p := r.Pos[i]
		if k == 0 {
			lo, hi = p, p
			continue
		}
		lo = r2.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y)}
		hi = r2.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y)}
	}
	return lo, hi, len(r.Order) > 0
}
