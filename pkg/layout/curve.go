package layout

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// Curve is a cubic Bézier edge from S to D.
type Curve struct {
	S, C1, C2, D r2.Vec
}

// Diagonal returns the horizontal S-shaped connector between s and d: both
// control points sit at the horizontal midpoint, one at each endpoint's
// vertical coordinate.
func Diagonal(s, d r2.Vec) Curve {
	mx := (s.X + d.X) / 2
	return Curve{
		S:  s,
		C1: r2.Vec{X: mx, Y: s.Y},
		C2: r2.Vec{X: mx, Y: d.Y},
		D:  d,
	}
}

// Path renders the curve as SVG path data: "M sx sy C mx sy, mx dy, dx dy".
func (c Curve) Path() string {
	var b strings.Builder
	b.WriteString("M ")
	writePoint(&b, c.S)
	b.WriteString(" C ")
	writePoint(&b, c.C1)
	b.WriteString(", ")
	writePoint(&b, c.C2)
	b.WriteString(", ")
	writePoint(&b, c.D)
	return b.String()
}

// At evaluates the curve at parameter u in [0, 1].
func (c Curve) At(u float64) r2.Vec {
	v := 1 - u
	p := r2.Scale(v*v*v, c.S)
	p = r2.Add(p, r2.Scale(3*v*v*u, c.C1))
	p = r2.Add(p, r2.Scale(3*v*u*u, c.C2))
	return r2.Add(p, r2.Scale(u*u*u, c.D))
}

func writePoint(b *strings.Builder, p r2.Vec) {
	b.WriteString(FormatCoord(p.X))
	b.WriteByte(' ')
	b.WriteString(FormatCoord(p.Y))
}

// FormatCoord formats a canvas coordinate with at most two decimals and no
// exponent, so tiny values such as 1e-6 come out as "0".
func FormatCoord(f float64) string {
	r := math.Round(f*100) / 100
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
