package ui

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/treescope/pkg/explorer"
	"github.com/vanderheijden86/treescope/pkg/testutil"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string { return ansiRe.ReplaceAllString(s, "") }

func key(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func newTestModel(opts Options) Model {
	if opts.Session.Surface.X == 0 {
		opts.Session = explorer.DefaultOptions()
	}
	m := NewModel(opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func loadedModel(t *testing.T) Model {
	t.Helper()
	m := newTestModel(Options{})
	tok := m.seq.Next()
	next, _ := m.Update(LoadedMsg{Token: tok, Origin: "test", Data: testutil.Scenario().Payload()})
	m = next.(Model)
	if !m.session.Loaded() {
		status, _ := m.Status()
		t.Fatalf("expected tree to load, status %q", status)
	}
	return m
}

func selectedName(m Model) string {
	i, ok := m.tree.Selected()
	if !ok {
		return ""
	}
	return m.session.Tree().Node(i).Name
}

// ===== Loading =====

func TestModel_EmptyState(t *testing.T) {
	m := newTestModel(Options{})
	if cmd := m.Init(); cmd != nil {
		t.Error("expected no initial command without a source")
	}
	if !strings.Contains(stripANSI(m.View()), "No tree loaded") {
		t.Error("expected empty state")
	}
}

func TestModel_Loaded(t *testing.T) {
	m := loadedModel(t)
	if m.tree.Len() != 4 {
		t.Fatalf("expected 4 rows, got %d", m.tree.Len())
	}
	if got := selectedName(m); got != "root" {
		t.Errorf("expected cursor on root, got %q", got)
	}
	view := stripANSI(m.View())
	for _, want := range []string{"4/4 nodes", "├── ", "└── ", "Loaded 4 nodes from test"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestModel_StaleResponseIgnored(t *testing.T) {
	m := newTestModel(Options{})
	old := m.seq.Next()
	m.seq.Next()

	next, _ := m.Update(LoadedMsg{Token: old, Data: testutil.Scenario().Payload()})
	m = next.(Model)
	if m.session.Loaded() {
		t.Error("expected stale payload to be dropped")
	}
}

func TestModel_ParseErrorShownInStatus(t *testing.T) {
	m := loadedModel(t)
	tok := m.seq.Next()
	next, _ := m.Update(LoadedMsg{Token: tok, Data: []byte(`{"children":[]}`)})
	m = next.(Model)

	status, isErr := m.Status()
	if !isErr || !strings.HasPrefix(status, "Invalid tree") {
		t.Errorf("expected parse error status, got %q (error=%v)", status, isErr)
	}
	if m.session.Tree().Len() != 4 {
		t.Error("expected previous tree kept")
	}
}

func TestModel_LoadErrorShownInStatus(t *testing.T) {
	m := newTestModel(Options{})
	tok := m.seq.Next()
	next, _ := m.Update(LoadedMsg{Token: tok, Err: errors.New("connection refused")})
	m = next.(Model)
	if status, isErr := m.Status(); !isErr || !strings.Contains(status, "connection refused") {
		t.Errorf("unexpected status %q", status)
	}
}

func TestModel_LoadsFileAndReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePayload(t, dir, "tree.json", testutil.Scenario())

	m := newTestModel(Options{Source: Source{Path: path}})
	m = run(t, m, m.Init())
	if m.session.Tree().Len() != 4 {
		t.Fatalf("expected 4 nodes, got %d", m.session.Tree().Len())
	}

	testutil.WritePayload(t, dir, "tree.json", testutil.Dir("root", testutil.Leaf("only", "x")))
	next, cmd := m.Update(FileChangedMsg{})
	m = run(t, next.(Model), cmd)
	if m.session.Tree().Len() != 2 {
		t.Errorf("expected reloaded tree with 2 nodes, got %d", m.session.Tree().Len())
	}
	if first := m.session.Tree().Node(0).ID; first != 5 {
		t.Errorf("expected ids to continue past the previous tree, got %d", first)
	}
}

func TestModel_ScansDirectory(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "sales.csv"), []byte("a,b"), 0o644)
	os.MkdirAll(filepath.Join(dir, "docs"), 0o755)
	os.WriteFile(filepath.Join(dir, "docs", "notes.md"), []byte("# hi"), 0o644)
	os.WriteFile(filepath.Join(dir, "ignored.bin"), []byte{0}, 0o644)

	m := newTestModel(Options{Source: Source{Dir: dir}})
	m = run(t, m, m.Init())
	if !m.session.Loaded() {
		status, _ := m.Status()
		t.Fatalf("expected scan to load, status %q", status)
	}
	testutil.Find(t, m.session.Tree(), "metadata")
	testutil.Find(t, m.session.Tree(), "notes.md")

	// Without backend analysis the panel falls back to the outline.
	if md := m.analysisMarkdown(); !strings.Contains(md, "notes.md (Path: docs/notes.md)") {
		t.Errorf("expected outline with paths, got:\n%s", md)
	}
}

func TestModel_ExampleWithoutBackend(t *testing.T) {
	m := press(loadedModel(t), "e")
	if status, isErr := m.Status(); !isErr || !strings.Contains(status, "backend") {
		t.Errorf("expected backend error, got %q", status)
	}
}

// ===== Navigation and toggling =====

func TestModel_ToggleCollapsesAndKeepsCursor(t *testing.T) {
	m := press(loadedModel(t), "j", "j")
	if got := selectedName(m); got != "b" {
		t.Fatalf("expected cursor on b, got %q", got)
	}

	m = press(m, "enter")
	if m.tree.Len() != 3 {
		t.Errorf("expected 3 rows after collapsing b, got %d", m.tree.Len())
	}
	if got := selectedName(m); got != "b" {
		t.Errorf("expected cursor to stay on b, got %q", got)
	}
	if !strings.Contains(stripANSI(m.tree.View()), "▸ b") {
		t.Error("expected collapsed marker on b")
	}

	m = press(m, " ")
	if m.tree.Len() != 4 {
		t.Errorf("expected 4 rows after expanding b, got %d", m.tree.Len())
	}
}

func TestModel_CollapseAllMovesCursorToAncestor(t *testing.T) {
	m := press(loadedModel(t), "G")
	if got := selectedName(m); got != "c" {
		t.Fatalf("expected cursor on c, got %q", got)
	}
	m = press(m, "C")
	if got := selectedName(m); got != "b" {
		t.Errorf("expected cursor on b once c is hidden, got %q", got)
	}
	m = press(m, "E")
	if m.tree.Len() != 4 {
		t.Errorf("expected all rows after expand all, got %d", m.tree.Len())
	}
}

func TestModel_ParentKey(t *testing.T) {
	m := press(loadedModel(t), "G", "h")
	if got := selectedName(m); got != "b" {
		t.Errorf("expected parent b, got %q", got)
	}
}

// ===== Search =====

func TestModel_SearchByName(t *testing.T) {
	m := press(loadedModel(t), "/", "c")
	if !m.searching {
		t.Fatal("expected search mode")
	}
	if m.tree.Len() != 3 {
		t.Errorf("expected root, b, c visible, got %d rows", m.tree.Len())
	}
	if status, _ := m.Status(); status != "1 matches" {
		t.Errorf("expected match count, got %q", status)
	}

	m = press(m, "enter")
	if m.searching || m.session.Query().Text != "c" {
		t.Error("expected enter to keep the query and leave search mode")
	}

	m = press(m, "esc")
	if m.tree.Len() != 4 || !m.session.Query().Empty() {
		t.Errorf("expected esc to clear the query, got %d rows", m.tree.Len())
	}
}

func TestModel_SearchByAttribute(t *testing.T) {
	m := press(loadedModel(t), "/", "tab", "n", "e", "s", "t")
	if m.session.Query().Text != "nest" {
		t.Fatalf("unexpected query %+v", m.session.Query())
	}
	got := testutil.Names(m.session.Tree(), m.session.Visible())
	if strings.Join(got, ",") != "root,b,c" {
		t.Errorf("expected root,b,c, got %v", got)
	}
}

func TestModel_ResetClearsSearch(t *testing.T) {
	m := press(loadedModel(t), "/", "a", "enter", "r")
	if m.search.Value() != "" || !m.session.Query().Empty() {
		t.Error("expected reset to clear the query")
	}
	if m.tree.Len() != 4 {
		t.Errorf("expected every node visible, got %d", m.tree.Len())
	}
}

// ===== Spacing, zoom and output =====

func TestModel_SpacingKeys(t *testing.T) {
	m := press(loadedModel(t), ">", "]")
	sp := m.session.Spacing()
	if sp.Horizontal != 400 || sp.Vertical != 60 {
		t.Errorf("expected 400x60, got %+v", sp)
	}

	m = press(m, "<", "<", "<", "<", "<", "<", "<", "<")
	if status, isErr := m.Status(); !isErr || !strings.Contains(status, "spacing") {
		t.Errorf("expected invalid spacing error, got %q", status)
	}
	if m.session.Spacing().Horizontal != 50 {
		t.Errorf("expected last valid spacing kept, got %+v", m.session.Spacing())
	}
}

func TestModel_ZoomKeys(t *testing.T) {
	m := press(loadedModel(t), "+", "+")
	if got := m.session.Transform().Scale; got < 1.4399 || got > 1.4401 {
		t.Errorf("expected scale 1.44, got %v", got)
	}
}

func TestModel_CopyPath(t *testing.T) {
	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = orig })

	m := press(loadedModel(t), "G", "y")
	if copied != "root/b/c" {
		t.Errorf("expected root/b/c, got %q", copied)
	}
	if status, _ := m.Status(); status != "Copied root/b/c" {
		t.Errorf("unexpected status %q", status)
	}
}

func TestModel_CopyPathError(t *testing.T) {
	orig := writeClipboard
	writeClipboard = func(string) error { return errors.New("no display") }
	t.Cleanup(func() { writeClipboard = orig })

	m := press(loadedModel(t), "y")
	if _, isErr := m.Status(); !isErr {
		t.Error("expected clipboard error in status")
	}
}

func TestModel_SaveSnapshot(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(Options{SnapshotDir: dir})
	tok := m.seq.Next()
	next, _ := m.Update(LoadedMsg{Token: tok, Data: testutil.Scenario().Payload()})
	m = next.(Model)

	for _, k := range []string{"s", "S"} {
		next, cmd := m.Update(key(k))
		m = run(t, next.(Model), cmd)
		status, isErr := m.Status()
		if isErr || !strings.HasPrefix(status, "Saved ") {
			t.Fatalf("expected saved status, got %q", status)
		}
		if _, err := os.Stat(strings.TrimPrefix(status, "Saved ")); err != nil {
			t.Errorf("snapshot not written: %v", err)
		}
	}
}

func TestModel_AnalysisToggle(t *testing.T) {
	m := loadedModel(t)
	tok := m.seq.Next()
	next, _ := m.Update(LoadedMsg{
		Token:     tok,
		Data:      testutil.Scenario().Payload(),
		Analysis:  "Quarterly revenue lives in b.",
		Objective: "find revenue",
	})
	m = press(next.(Model), "a")
	if !m.showAnalysis {
		t.Fatal("expected analysis panel")
	}
	if md := m.analysisMarkdown(); md != "Quarterly revenue lives in b." {
		t.Errorf("unexpected analysis %q", md)
	}
	if !strings.Contains(stripANSI(m.detail.View()), "revenue") {
		t.Error("expected analysis in the detail pane")
	}
}

func TestModel_QuitKey(t *testing.T) {
	_, cmd := loadedModel(t).Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}
