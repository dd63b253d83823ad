package ui

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/search"
	"github.com/vanderheijden86/treescope/pkg/testutil"
)

func syncedView(t *testing.T, f *testutil.TreeFixture) (TreeView, *hierarchy.Tree, *hierarchy.State) {
	t.Helper()
	tree := testutil.MustBuild(t, f)
	st := hierarchy.NewState(tree)
	v := NewTreeView(TestTheme())
	v.Sync(tree, st, search.Query{})
	return v, tree, st
}

func TestTreeView_Prefixes(t *testing.T) {
	v, _, _ := syncedView(t, testutil.Scenario())

	want := []string{"", "├── ", "└── ", "    └── "}
	if len(v.rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(v.rows))
	}
	for i, row := range v.rows {
		if row.prefix != want[i] {
			t.Errorf("row %d: expected prefix %q, got %q", i, want[i], row.prefix)
		}
	}
}

func TestTreeView_ContinuationGuides(t *testing.T) {
	f := testutil.Dir("root",
		testutil.Dir("x", testutil.Leaf("x1", "")),
		testutil.Leaf("y", ""),
	)
	v, _, _ := syncedView(t, f)
	if got := v.rows[2].prefix; got != "│   └── " {
		t.Errorf("expected continuation guide for x1, got %q", got)
	}
}

func TestTreeView_Empty(t *testing.T) {
	v := NewTreeView(TestTheme())
	v.Sync(nil, nil, search.Query{})
	if v.Len() != 0 || v.View() != "" {
		t.Error("expected empty view")
	}
	if _, ok := v.Selected(); ok {
		t.Error("expected no selection")
	}
	v.MoveDown()
	if v.Cursor() != 0 {
		t.Errorf("expected cursor 0, got %d", v.Cursor())
	}
}

func TestTreeView_CursorClamps(t *testing.T) {
	v, _, _ := syncedView(t, testutil.Scenario())
	v.MoveUp()
	if v.Cursor() != 0 {
		t.Errorf("expected cursor clamped at 0, got %d", v.Cursor())
	}
	v.PageDown()
	if v.Cursor() != 3 {
		t.Errorf("expected cursor clamped at last row, got %d", v.Cursor())
	}
}

func TestTreeView_Windowing(t *testing.T) {
	f := testutil.NewDefault().Random(60)
	v, _, _ := syncedView(t, f)
	v.SetSize(80, 10)

	v.Bottom()
	start, end := v.visibleRange()
	if end-start != 10 || end != v.Len() {
		t.Errorf("expected the last 10 rows on screen, got %d-%d of %d", start, end, v.Len())
	}
	if !strings.Contains(stripANSI(v.View()), "of 60") {
		t.Error("expected position indicator")
	}
}

func TestTreeView_MatchesHighlighted(t *testing.T) {
	tree := testutil.MustBuild(t, testutil.Scenario())
	st := hierarchy.NewState(tree)
	q := search.Query{Text: "c", Field: search.FieldName}
	search.Filter(tree, st, q)

	v := NewTreeView(TestTheme())
	v.Sync(tree, st, q)
	c := testutil.Find(t, tree, "c")
	if !v.match[c] {
		t.Error("expected c to be marked as a match")
	}
	if v.match[testutil.Find(t, tree, "b")] {
		t.Error("ancestor b should be visible but not a match")
	}
}

func TestTreeView_AttributeHint(t *testing.T) {
	v, tree, _ := syncedView(t, testutil.Scenario())
	v.SetSize(80, 10)
	v.Select(testutil.Find(t, tree, "a"))
	if !strings.Contains(stripANSI(v.View()), "a  first leaf") {
		t.Errorf("expected file overview hint, got:\n%s", stripANSI(v.View()))
	}
}

func TestTruncate_WideRunes(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"report.csv", 20, "report.csv"},
		{"quarterly_report.csv", 10, "quarterly…"},
		{"売上データ.csv", 6, "売上…"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, expected %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestSingleLine(t *testing.T) {
	if got := singleLine("two\nlines  here"); got != "two lines here" {
		t.Errorf("unexpected %q", got)
	}
}
