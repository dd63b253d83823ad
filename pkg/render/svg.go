package render

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"time"

	svg "github.com/ajstarks/svgo"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/metrics"
	"github.com/vanderheijden86/treescope/pkg/reconcile"
)

// ErrNoFrame is returned when asked to draw a nil frame.
var ErrNoFrame = errors.New("no frame to render")

// ViewportID is the id of the pan/zoom group, so a page script can update the
// transform without re-rendering.
const ViewportID = "viewport"

// WriteSVG writes frame as a standalone SVG document. Every element starts in
// its From state and animates to its To state with SMIL, so dropping the
// document into a page replays the transition. Exiting elements animate out
// and stay invisible at the end.
func WriteSVG(w io.Writer, frame *reconcile.Frame, opts Options) error {
	if frame == nil {
		return ErrNoFrame
	}
	defer metrics.TimerWithCallback(metrics.RenderSVG, func(d time.Duration) {
		debug.LogTiming("render.WriteSVG", d)
	})()

	opts = opts.normalized()
	// Buffer so a failed write never leaves half a document behind.
	var buf bytes.Buffer
	s := &svgWriter{canvas: svg.New(&buf), opts: opts, dur: frame.Duration.Seconds()}
	s.document(frame)
	_, err := buf.WriteTo(w)
	return err
}

// SVGString is WriteSVG into a string.
func SVGString(frame *reconcile.Frame, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, frame, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type svgWriter struct {
	canvas *svg.SVG
	opts   Options
	dur    float64
}

func (s *svgWriter) printf(format string, args ...any) {
	fmt.Fprintf(s.canvas.Writer, format, args...)
}

func (s *svgWriter) document(frame *reconcile.Frame) {
	c := s.canvas
	c.Start(s.opts.Width, s.opts.Height, fmt.Sprintf(`data-seq="%d"`, frame.Seq))
	if s.opts.Title != "" {
		c.Title(s.opts.Title)
	}
	c.Rect(0, 0, s.opts.Width, s.opts.Height, "fill:"+css(colorBackdrop))
	c.Gtransform(fmt.Sprintf("translate(%s,%s)",
		layout.FormatCoord(s.opts.Margin.X), layout.FormatCoord(s.opts.Margin.Y)))
	c.Group(fmt.Sprintf(`id="%s"`, ViewportID), fmt.Sprintf(`transform="%s"`, s.opts.TransformAttr()))

	// Links first so nodes paint over them.
	for _, e := range frame.Edges {
		s.edge(e)
	}
	for _, n := range frame.Nodes {
		s.node(n)
	}

	c.Gend()
	c.Gend()
	c.End()
}

func (s *svgWriter) edge(e reconcile.Edge) {
	from, to := e.From.Path(), e.To.Path()
	if s.opts.Static {
		if e.Removed {
			return
		}
		from = to
	}
	s.printf(`<path class="link" data-id="%d" data-phase="%s" d="%s" fill="none" stroke="%s" stroke-width="2">`,
		e.ID, e.Phase, from, css(colorEdge))
	if !s.opts.Static {
		s.animate("d", from, to)
	}
	s.printf("</path>\n")
}

func (s *svgWriter) node(n reconcile.Node) {
	from, to := n.From, n.To
	if s.opts.Static {
		if n.Removed {
			return
		}
		from = to
	}
	anchor, dx := n.LabelAnchor()

	s.printf(`<g class="node" data-id="%d" data-phase="%s" transform="translate(%s)" style="cursor:pointer">`,
		n.ID, n.Phase, point(from.Pos))
	if !s.opts.Static {
		s.printf(`<animateTransform attributeName="transform" type="translate" from="%s" to="%s" dur="%gs" fill="freeze"/>`,
			point(from.Pos), point(to.Pos), s.dur)
	}

	s.printf(`<circle r="%s" fill="%s" stroke="%s" stroke-width="3">`,
		radius(from.Radius), n.Fill(), css(colorStroke))
	if !s.opts.Static {
		s.animate("r", radius(from.Radius), radius(to.Radius))
	}
	s.printf("</circle>")

	s.printf(`<text dy=".35em" x="%s" text-anchor="%s" font-size="12px" fill="%s" fill-opacity="%s">%s`,
		layout.FormatCoord(dx), anchor, css(colorText), opacity(from.Opacity),
		html.EscapeString(Label(n.Name, s.opts.LabelWidth)))
	s.printf("<title>%s</title>", html.EscapeString(n.Name))
	if !s.opts.Static {
		s.animate("fill-opacity", opacity(from.Opacity), opacity(to.Opacity))
	}
	s.printf("</text></g>\n")
}

func (s *svgWriter) animate(attr, from, to string) {
	s.printf(`<animate attributeName="%s" from="%s" to="%s" dur="%gs" fill="freeze"/>`, attr, from, to, s.dur)
}

func point(p r2.Vec) string {
	return layout.FormatCoord(p.X) + "," + layout.FormatCoord(p.Y)
}

// radius keeps the vanishing radius distinct from zero; a zero radius
// disables rendering of the circle in some viewers mid-animation.
func radius(r float64) string {
	if r < 1 {
		return "1e-6"
	}
	return layout.FormatCoord(r)
}

func opacity(o float64) string {
	if o < 0.01 {
		return "0"
	}
	return layout.FormatCoord(o)
}
