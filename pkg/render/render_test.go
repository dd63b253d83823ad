package render_test

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/reconcile"
	"github.com/vanderheijden86/treescope/pkg/render"
	"github.com/vanderheijden86/treescope/pkg/testutil"
)

// frames returns the first pass over the scenario tree and the pass after
// collapsing b.
func frames(t *testing.T) (first, collapsed *reconcile.Frame) {
	t.Helper()
	tree := testutil.MustBuild(t, testutil.Scenario())
	st := hierarchy.NewState(tree)
	st.SetPrev(tree.Root(), r2.Vec{X: 0, Y: 375})

	pass := func(prev *reconcile.Frame, src hierarchy.Index) *reconcile.Frame {
		res := layout.Compute(tree, st, layout.DefaultSpacing())
		f := reconcile.Plan(prev, reconcile.Input{Tree: tree, State: st, Layout: res, Source: src})
		res.Store(st)
		st.Commit(res.Order)
		return f
	}
	first = pass(nil, tree.Root())
	b := testutil.Find(t, tree, "b")
	st.Toggle(b)
	collapsed = pass(first, b)
	return first, collapsed
}

func TestWriteSVG_Animated(t *testing.T) {
	first, _ := frames(t)
	out, err := render.SVGString(first, render.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if missing := testutil.ContainsAll(out,
		`<svg`,
		`id="viewport"`,
		`transform="translate(0,0) scale(1)"`,
		`translate(90,20)`,
		`<animateTransform attributeName="transform" type="translate" from="0,375" to="350,-50" dur="0.75s" fill="freeze"/>`,
		`<animate attributeName="r" from="1e-6" to="10"`,
		`<animate attributeName="d" from="M 0 375 C 0 375, 0 375, 0 375" to="M 0 0 C 175 0, 175 -50, 350 -50"`,
		`text-anchor="start"`,
		`>root<title>root</title>`,
		`</svg>`,
	); missing != "" {
		t.Errorf("SVG missing %q:\n%s", missing, out)
	}
	if n := strings.Count(out, `class="node"`); n != 4 {
		t.Errorf("expected 4 nodes, got %d", n)
	}
	if n := strings.Count(out, `class="link"`); n != 3 {
		t.Errorf("expected 3 links, got %d", n)
	}
}

func TestWriteSVG_ExitAnimatesOut(t *testing.T) {
	_, collapsed := frames(t)
	out, err := render.SVGString(collapsed, render.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if missing := testutil.ContainsAll(out,
		`data-phase="exit"`,
		`from="700,50" to="350,50"`,
		`fill="lightsteelblue"`,
		`text-anchor="end"`,
		`x="-13"`,
	); missing != "" {
		t.Errorf("SVG missing %q:\n%s", missing, out)
	}
}

func TestWriteSVG_StaticDropsExits(t *testing.T) {
	_, collapsed := frames(t)
	opts := render.DefaultOptions()
	opts.Static = true
	out, err := render.SVGString(collapsed, opts)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<animate") {
		t.Error("static SVG should not animate")
	}
	if strings.Contains(out, `data-phase="exit"`) {
		t.Error("static SVG should drop exiting elements")
	}
	if n := strings.Count(out, `class="node"`); n != 3 {
		t.Errorf("expected 3 nodes, got %d", n)
	}
}

func TestWriteSVG_EscapesNames(t *testing.T) {
	tree, err := hierarchy.Build([]byte(`{"name":"<a&b>"}`))
	if err != nil {
		t.Fatal(err)
	}
	st := hierarchy.NewState(tree)
	res := layout.Compute(tree, st, layout.DefaultSpacing())
	f := reconcile.Plan(nil, reconcile.Input{Tree: tree, State: st, Layout: res, Source: tree.Root()})

	out, err := render.SVGString(f, render.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<a&b>") || !strings.Contains(out, "&lt;a&amp;b&gt;") {
		t.Errorf("name not escaped:\n%s", out)
	}
}

func TestWriteSVG_NilFrame(t *testing.T) {
	if err := render.WriteSVG(&bytes.Buffer{}, nil, render.DefaultOptions()); !errors.Is(err, render.ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func TestWritePNG(t *testing.T) {
	first, _ := frames(t)
	opts := render.DefaultOptions()
	opts.Width, opts.Height = 400, 300

	var buf bytes.Buffer
	if err := render.WritePNG(&buf, first, opts); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("expected 400x300, got %v", b)
	}
}

func TestSaveByExtension(t *testing.T) {
	first, _ := frames(t)
	dir := t.TempDir()

	for _, name := range []string{"out/tree.svg", "out/tree.png"} {
		path := filepath.Join(dir, name)
		if err := render.Save(path, first, render.DefaultOptions()); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if err := render.Save(filepath.Join(dir, "tree.gif"), first, render.DefaultOptions()); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a-very-long-file-name.csv", 10, "a-very-lo…"},
		{"日本語のファイル", 6, "日本…"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := render.Label(tt.in, tt.width); got != tt.want {
			t.Errorf("Label(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestTransformAttr(t *testing.T) {
	opts := render.DefaultOptions()
	opts.Translate = r2.Vec{X: -12.5, Y: 40}
	opts.Scale = 1.44
	if got := opts.TransformAttr(); got != "translate(-12.5,40) scale(1.44)" {
		t.Errorf("unexpected transform %q", got)
	}
}
