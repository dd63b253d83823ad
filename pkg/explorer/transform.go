package explorer

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Zoom steps used by the zoom buttons and keys.
const (
	ZoomInFactor  = 1.2
	ZoomOutFactor = 0.8
)

// Scale limits.
const (
	DefaultMinScale = 0.1
	DefaultMaxScale = 8.0
)

// Transform is the pan/zoom applied to the drawing: a point p of the layout
// appears at Translate + Scale·p.
type Transform struct {
	Translate r2.Vec
	Scale     float64
	MinScale  float64
	MaxScale  float64
}

// Identity returns the unpanned, unzoomed transform with default limits.
func Identity() Transform {
	return Transform{Scale: 1, MinScale: DefaultMinScale, MaxScale: DefaultMaxScale}
}

func (t Transform) clamp(k float64) float64 {
	lo, hi := t.MinScale, t.MaxScale
	if lo <= 0 {
		lo = DefaultMinScale
	}
	if hi <= 0 {
		hi = DefaultMaxScale
	}
	return min(max(k, lo), hi)
}

// ZoomBy multiplies the scale by k, keeping center (in screen coordinates)
// fixed. The resulting scale is clamped to [MinScale, MaxScale]. Factors
// that are not positive and finite, and non-finite centers, are ignored.
func (t Transform) ZoomBy(k float64, center r2.Vec) Transform {
	if !(k > 0) || math.IsInf(k, 0) || !finite(center) {
		return t
	}
	next := t.clamp(t.Scale * k)
	if next == t.Scale {
		return t
	}
	// The layout point under center must stay under center.
	p := r2.Scale(1/t.Scale, r2.Sub(center, t.Translate))
	t.Translate = r2.Sub(center, r2.Scale(next, p))
	t.Scale = next
	return t
}

// PanBy moves the drawing by d screen units. A non-finite d is ignored.
func (t Transform) PanBy(d r2.Vec) Transform {
	if !finite(d) {
		return t
	}
	t.Translate = r2.Add(t.Translate, d)
	return t
}

// Apply maps a layout point to screen coordinates.
func (t Transform) Apply(p r2.Vec) r2.Vec {
	return r2.Add(t.Translate, r2.Scale(t.Scale, p))
}

// Invert maps a screen point back to layout coordinates.
func (t Transform) Invert(p r2.Vec) r2.Vec {
	return r2.Scale(1/t.Scale, r2.Sub(p, t.Translate))
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}
