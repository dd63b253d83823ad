// Package ui is the terminal explorer: an outline of the visible tree, a
// search bar and a detail pane, all driven through the same explorer
// session the browser page uses.
package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/explorer"
	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/loader"
	"github.com/vanderheijden86/treescope/pkg/render"
	"github.com/vanderheijden86/treescope/pkg/search"
)

// Keyboard spacing steps.
const (
	horizontalStep = 50
	verticalStep   = 10
)

// writeClipboard is swapped out by tests.
var writeClipboard = clipboard.WriteAll

// Source says where the model loads its tree from. At most one of Path and
// Dir is used; Backend additionally enables loading the example tree.
type Source struct {
	Path    string
	Dir     string
	Backend *loader.Client
}

// Options configures a Model.
type Options struct {
	Session     explorer.Options
	Source      Source
	SnapshotDir string // where s/S write snapshots; defaults to "."
	Field       search.Field
}

// LoadedMsg carries a fetched payload back into the update loop.
type LoadedMsg struct {
	Token     loader.Token
	Origin    string
	Data      []byte
	Analysis  string
	Objective string
	Err       error
}

// FileChangedMsg asks the model to reload its source.
type FileChangedMsg struct{}

type snapshotMsg struct {
	path string
	err  error
}

// Model is the bubbletea model of the terminal explorer.
type Model struct {
	session *explorer.Session
	seq     *loader.Sequencer
	source  Source
	theme   Theme

	tree      TreeView
	search    textinput.Model
	searching bool
	field     search.Field

	detail       viewport.Model
	md           *glamour.TermRenderer
	showAnalysis bool
	analysis     string
	objective    string
	origin       string

	snapshotDir   string
	loading       bool
	status        string
	statusIsError bool
	width         int
	height        int
	ready         bool
}

// NewModel creates a model with an empty session. Init starts loading the
// configured source.
func NewModel(opts Options) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())

	ti := textinput.New()
	ti.Placeholder = "search..."
	ti.Prompt = "/ "
	ti.CharLimit = 200
	ti.Width = 40

	field := opts.Field
	if field == "" {
		field = search.FieldName
	}
	dir := opts.SnapshotDir
	if dir == "" {
		dir = "."
	}

	return Model{
		session:     explorer.New(opts.Session),
		seq:         &loader.Sequencer{},
		source:      opts.Source,
		theme:       theme,
		tree:        NewTreeView(theme),
		search:      ti,
		field:       field,
		detail:      viewport.New(40, 20),
		md:          newMarkdownRenderer(40),
		snapshotDir: dir,
		width:       120,
		height:      40,
	}
}

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		debug.Log("ui: glamour renderer: %v", err)
		return nil
	}
	return r
}

// Init starts loading the source, if any.
func (m Model) Init() tea.Cmd {
	return m.reload()
}

// Session exposes the underlying session.
func (m Model) Session() *explorer.Session { return m.session }

// Status returns the status bar text and whether it reports an error.
func (m Model) Status() (string, bool) { return m.status, m.statusIsError }

// reload re-reads the configured source. It returns nil when there is none.
func (m *Model) reload() tea.Cmd {
	switch {
	case m.source.Dir != "":
		return m.scanDir(m.source.Dir)
	case m.source.Path != "":
		return m.loadFile(m.source.Path)
	}
	return nil
}

func (m *Model) loadFile(path string) tea.Cmd {
	tok := m.seq.Next()
	m.loading = true
	return func() tea.Msg {
		data, err := loader.LoadFile(path)
		return LoadedMsg{Token: tok, Origin: path, Data: data, Err: err}
	}
}

func (m *Model) scanDir(dir string) tea.Cmd {
	tok := m.seq.Next()
	m.loading = true
	return func() tea.Msg {
		root, err := loader.ScanDir(context.Background(), dir, loader.ScanOptions{})
		if err != nil {
			return LoadedMsg{Token: tok, Origin: dir, Err: err}
		}
		data, err := root.Payload()
		return LoadedMsg{Token: tok, Origin: dir, Data: data, Err: err}
	}
}

func (m *Model) loadExample() tea.Cmd {
	if m.source.Backend == nil {
		m.setError(errors.New("no analysis backend configured"))
		return nil
	}
	tok := m.seq.Next()
	m.loading = true
	m.status, m.statusIsError = "Loading example...", false
	backend := m.source.Backend
	return func() tea.Msg {
		resp, err := backend.Example(context.Background())
		if err != nil {
			return LoadedMsg{Token: tok, Origin: "example", Err: err}
		}
		return LoadedMsg{Token: tok, Origin: "example", Data: resp.Tree, Analysis: resp.Analysis, Objective: resp.Objective}
	}
}

func (m *Model) handleLoaded(msg LoadedMsg) {
	if err := m.seq.Check(msg.Token); err != nil {
		debug.Log("ui: dropping response for %s: %v", msg.Origin, err)
		return
	}
	m.loading = false
	if msg.Err != nil {
		m.setError(msg.Err)
		return
	}
	if _, err := m.session.Load(msg.Data); err != nil {
		m.setError(err)
		return
	}
	m.origin = msg.Origin
	m.analysis, m.objective = msg.Analysis, msg.Objective
	m.sync()
	m.tree.Top()
	m.refreshDetail()
	m.status = fmt.Sprintf("Loaded %d nodes from %s", m.session.Tree().Len(), msg.Origin)
	m.statusIsError = false
}

func (m *Model) setError(err error) {
	var pe *hierarchy.ParseError
	if errors.As(err, &pe) {
		m.status = "Invalid tree: " + pe.Error()
	} else {
		m.status = "Error: " + err.Error()
	}
	m.statusIsError = true
}

// dispatch applies ev to the session and refreshes the views.
func (m *Model) dispatch(ev explorer.Event) *explorer.Pass {
	if !m.session.Loaded() {
		return nil
	}
	p, err := m.session.Dispatch(ev)
	if err != nil {
		m.setError(err)
		return nil
	}
	m.sync()
	return p
}

func (m *Model) sync() {
	m.tree.Sync(m.session.Tree(), m.session.State(), m.session.Query())
	m.refreshDetail()
}

func (m *Model) selectedNode() (*hierarchy.Node, bool) {
	i, ok := m.tree.Selected()
	if !ok || !m.session.Loaded() {
		return nil, false
	}
	return m.session.Tree().Node(i), true
}

// analysisMarkdown is the backend analysis, or the outline of the whole
// tree when the source carried none.
func (m *Model) analysisMarkdown() string {
	if m.analysis != "" {
		return m.analysis
	}
	if !m.session.Loaded() {
		return ""
	}
	return "```\n" + loader.Outline(m.session.Tree(), loader.PathLabel) + "```\n"
}

func (m *Model) refreshDetail() {
	var md string
	switch {
	case m.showAnalysis:
		md = m.analysisMarkdown()
		if m.objective != "" {
			md = "**Objective:** " + m.objective + "\n\n" + md
		}
	default:
		n, ok := m.selectedNode()
		if !ok {
			m.detail.SetContent("")
			return
		}
		panel, err := m.session.Detail(n.ID)
		if err != nil {
			m.detail.SetContent(err.Error())
			return
		}
		md = panel.Markdown()
	}

	content := md
	if m.md != nil {
		if rendered, err := m.md.Render(md); err == nil {
			content = strings.TrimRight(rendered, "\n")
		}
	}
	m.detail.SetContent(content)
	m.detail.GotoTop()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	treeWidth := width * 55 / 100
	detailWidth := max(width-treeWidth-2, 20)
	body := max(height-4, 3) // header, footer, status
	if m.searching {
		body--
	}
	m.tree.SetSize(treeWidth, body)
	m.detail.Width = detailWidth
	m.detail.Height = body
	if m.ready {
		m.md = newMarkdownRenderer(detailWidth)
	}
	m.ready = true
	m.refreshDetail()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case LoadedMsg:
		m.handleLoaded(msg)
		return m, nil

	case FileChangedMsg:
		cmd := m.reload()
		if cmd != nil {
			m.status, m.statusIsError = "Source changed, reloading...", false
		}
		return m, cmd

	case snapshotMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.status, m.statusIsError = "Saved "+msg.path, false
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.applyQuery()
		return m, nil
	case "tab":
		m.toggleField()
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != before {
		m.applyQuery()
	}
	return m, cmd
}

func (m *Model) applyQuery() {
	p := m.dispatch(explorer.QueryChanged{Query: search.Query{Text: m.search.Value(), Field: m.field}})
	if p == nil {
		return
	}
	if m.session.Query().Empty() {
		m.status = ""
	} else {
		m.status = fmt.Sprintf("%d matches", p.Matches)
	}
	m.statusIsError = false
}

func (m *Model) toggleField() {
	if m.field == search.FieldName {
		m.field = search.FieldAttribute
	} else {
		m.field = search.FieldName
	}
	if m.search.Value() != "" {
		m.applyQuery()
	}
	m.status, m.statusIsError = "Searching "+fieldLabel(m.field), false
}

func fieldLabel(f search.Field) string {
	if f == search.FieldAttribute {
		return "file overview"
	}
	return "names"
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "j", "down":
		m.tree.MoveDown()
	case "k", "up":
		m.tree.MoveUp()
	case "g", "home":
		m.tree.Top()
	case "G", "end":
		m.tree.Bottom()
	case "ctrl+d", "pgdown":
		m.tree.PageDown()
	case "ctrl+u", "pgup":
		m.tree.PageUp()
	case "h", "left":
		m.tree.Parent()
	case "J":
		m.detail.LineDown(3)
		return m, nil
	case "K":
		m.detail.LineUp(3)
		return m, nil

	case "enter", " ", "l", "right":
		m.toggle()
		return m, nil

	case "/":
		m.searching = true
		m.resize(m.width, m.height)
		return m, m.search.Focus()
	case "tab":
		m.toggleField()
		return m, nil
	case "esc":
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.applyQuery()
		}
		return m, nil

	case "E":
		m.dispatch(explorer.ExpandAll{})
		return m, nil
	case "C":
		m.dispatch(explorer.CollapseAll{})
		return m, nil
	case "r":
		m.search.SetValue("")
		if m.dispatch(explorer.Reset{}) != nil {
			m.status, m.statusIsError = "View reset", false
		}
		return m, nil

	case ">":
		m.adjustSpacing(horizontalStep, 0)
		return m, nil
	case "<":
		m.adjustSpacing(-horizontalStep, 0)
		return m, nil
	case "]":
		m.adjustSpacing(0, verticalStep)
		return m, nil
	case "[":
		m.adjustSpacing(0, -verticalStep)
		return m, nil
	case "+", "=":
		m.zoom(explorer.ZoomInFactor)
		return m, nil
	case "-":
		m.zoom(explorer.ZoomOutFactor)
		return m, nil

	case "y":
		m.copyPath()
		return m, nil
	case "s":
		return m, m.saveSnapshot(".png")
	case "S":
		return m, m.saveSnapshot(".svg")
	case "a":
		m.showAnalysis = !m.showAnalysis
		m.refreshDetail()
		return m, nil
	case "e":
		return m, m.loadExample()
	case "R":
		return m, m.reload()
	default:
		return m, nil
	}

	// Cursor moved.
	if !m.showAnalysis {
		m.refreshDetail()
	}
	return m, nil
}

// toggle clicks the node under the cursor.
func (m *Model) toggle() {
	i, ok := m.tree.Selected()
	if !ok {
		return
	}
	if m.dispatch(explorer.NodeClicked{ID: m.session.Tree().Node(i).ID}) != nil {
		m.tree.Select(i)
		m.refreshDetail()
	}
}

func (m *Model) adjustSpacing(dh, dv float64) {
	sp := m.session.Spacing()
	next := layout.Spacing{Horizontal: sp.Horizontal + dh, Vertical: sp.Vertical + dv}
	if m.dispatch(explorer.SpacingChanged{Spacing: next}) != nil {
		m.status = fmt.Sprintf("Spacing %g × %g", next.Horizontal, next.Vertical)
		m.statusIsError = false
	}
}

func (m *Model) zoom(factor float64) {
	if p := m.dispatch(explorer.ZoomRequested{Factor: factor}); p != nil {
		m.status = fmt.Sprintf("Snapshot zoom %.2fx", p.Transform.Scale)
		m.statusIsError = false
	}
}

func (m *Model) copyPath() {
	i, ok := m.tree.Selected()
	if !ok {
		return
	}
	n := m.session.Tree().Node(i)
	path, ok := n.Attr("path")
	if !ok {
		path = m.session.Tree().Path(i)
	}
	if err := writeClipboard(path); err != nil {
		m.status = fmt.Sprintf("Clipboard error: %v", err)
		m.statusIsError = true
		return
	}
	m.status = "Copied " + path
	m.statusIsError = false
}

// saveSnapshot renders the current frame in the background. ext picks the
// format.
func (m *Model) saveSnapshot(ext string) tea.Cmd {
	if !m.session.Loaded() {
		m.setError(explorer.ErrNoTree)
		return nil
	}
	frame := m.session.Frame()
	opts := m.session.RenderOptions()
	opts.Static = true
	path := filepath.Join(m.snapshotDir, fmt.Sprintf("treescope-%03d%s", frame.Seq, ext))
	return func() tea.Msg {
		return snapshotMsg{path: path, err: render.Save(path, frame, opts)}
	}
}

// View renders the screen.
func (m Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()

	var body string
	if !m.session.Loaded() {
		body = m.renderEmptyState()
	} else {
		left := lipgloss.NewStyle().Width(m.width * 55 / 100).Render(m.tree.View())
		right := m.theme.Panel.Width(m.detail.Width).Render(m.detail.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
	}

	parts := []string{header, body}
	if m.searching {
		parts = append(parts, m.search.View()+m.theme.MutedText.Render("  ["+fieldLabel(m.field)+"]"))
	}
	parts = append(parts, m.renderStatus(), footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := "treescope"
	if m.origin != "" {
		title += "  " + m.origin
	}
	if m.session.Loaded() {
		title += fmt.Sprintf("  %d/%d nodes", m.tree.Len(), m.session.Tree().Len())
		if q := m.session.Query(); !q.Empty() {
			title += fmt.Sprintf("  %s~%q", q.Field, q.Text)
		}
	}
	return m.theme.Header.Width(m.width).Render(truncate(title, max(m.width-2, 1)))
}

func (m Model) renderStatus() string {
	if m.loading && m.status == "" {
		return m.theme.MutedText.Render("Loading...")
	}
	if m.statusIsError {
		return m.theme.ErrorText.Render(m.status)
	}
	return m.theme.SecondaryText.Render(m.status)
}

func (m Model) renderFooter() string {
	keys := "j/k move  enter toggle  / search  tab field  E/C expand/collapse  </> [/] spacing  y copy  s png  a analysis  q quit"
	return m.theme.MutedText.Render(truncate(keys, max(m.width, 10)))
}

func (m Model) renderEmptyState() string {
	var sb strings.Builder
	sb.WriteString(m.theme.PrimaryBold.Render("No tree loaded"))
	sb.WriteString("\n\n")
	if m.loading {
		sb.WriteString(m.theme.MutedText.Render("Loading..."))
		return sb.String()
	}
	sb.WriteString(m.theme.MutedText.Render("Open a payload with: treescope tui <file.json>"))
	sb.WriteString("\n")
	sb.WriteString(m.theme.MutedText.Render("Scan a folder with:  treescope tui --scan <dir>"))
	if m.source.Backend != nil {
		sb.WriteString("\n")
		sb.WriteString(m.theme.MutedText.Render("Press e to load the example tree."))
	}
	return sb.String()
}
