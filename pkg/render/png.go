package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/metrics"
	"github.com/vanderheijden86/treescope/pkg/reconcile"
)

// WritePNG draws the final state of frame, with exiting elements dropped,
// and encodes it as PNG.
func WritePNG(w io.Writer, frame *reconcile.Frame, opts Options) error {
	if frame == nil {
		return ErrNoFrame
	}
	dc := drawPNG(frame, opts.normalized())
	return dc.EncodePNG(w)
}

// SavePNG writes a PNG snapshot to path, creating parent directories.
func SavePNG(path string, frame *reconcile.Frame, opts Options) error {
	if frame == nil {
		return ErrNoFrame
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	dc := drawPNG(frame, opts.normalized())
	return dc.SavePNG(path)
}

// Save writes a snapshot to path, choosing SVG or PNG from the extension.
// SVG snapshots are static.
func Save(path string, frame *reconcile.Frame, opts Options) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return SavePNG(path, frame, opts)
	case ".svg":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create parent dir: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		opts.Static = true
		if err := WriteSVG(f, frame, opts); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("unsupported snapshot format %q (want .svg or .png)", filepath.Ext(path))
	}
}

func drawPNG(frame *reconcile.Frame, opts Options) *gg.Context {
	defer metrics.TimerWithCallback(metrics.RenderPNG, func(d time.Duration) {
		debug.LogTiming("render.drawPNG", d)
	})()

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	if opts.Title != "" {
		dc.SetColor(colorText)
		dc.DrawStringAnchored(opts.Title, 12, 12, 0, 0.5)
	}

	dc.Push()
	dc.Translate(opts.Margin.X, opts.Margin.Y)
	dc.Translate(opts.Translate.X, opts.Translate.Y)
	dc.Scale(opts.Scale, opts.Scale)

	dc.SetColor(colorEdge)
	dc.SetLineWidth(2)
	for _, e := range frame.Edges {
		if e.Removed {
			continue
		}
		c := e.To
		dc.NewSubPath()
		dc.MoveTo(c.S.X, c.S.Y)
		dc.CubicTo(c.C1.X, c.C1.Y, c.C2.X, c.C2.Y, c.D.X, c.D.Y)
		dc.Stroke()
	}

	for _, n := range frame.Nodes {
		if n.Removed {
			continue
		}
		p := n.To.Pos
		dc.DrawCircle(p.X, p.Y, n.To.Radius)
		if n.Collapsed {
			dc.SetColor(colorCollapsed)
		} else {
			dc.SetColor(colorLeaf)
		}
		dc.FillPreserve()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(3)
		dc.Stroke()

		anchor, dx := n.LabelAnchor()
		ax := 0.0
		if anchor == "end" {
			ax = 1
		}
		dc.SetColor(colorText)
		dc.DrawStringAnchored(Label(n.Name, opts.LabelWidth), p.X+dx, p.Y, ax, 0.35)
	}
	dc.Pop()
	return dc
}
