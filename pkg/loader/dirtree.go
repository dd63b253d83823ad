package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/metrics"
)

// AllowedExtensions are the document types picked up by ScanDir.
var AllowedExtensions = []string{".csv", ".xls", ".xlsx", ".pdf", ".doc", ".docx", ".txt", ".md"}

// MetadataName is the name of the summary node appended under the root.
const MetadataName = "metadata"

// ErrNotDir is returned when ScanDir is pointed at a file.
var ErrNotDir = errors.New("not a directory")

// DirNode is one entry of a scanned directory, shaped like a tree payload.
type DirNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path,omitempty"`
	Children []*DirNode `json:"children,omitempty"`
}

// Payload encodes the scan result as a tree payload.
func (n *DirNode) Payload() ([]byte, error) {
	return json.Marshal(n)
}

// ScanOptions configures ScanDir.
type ScanOptions struct {
	// Extensions overrides AllowedExtensions. Matching is case-insensitive.
	Extensions []string
	// Concurrency bounds how many top-level subdirectories are walked at
	// once. If 0, uses 8.
	Concurrency int
}

type scanner struct {
	root    string
	allowed map[string]bool

	mu     sync.Mutex
	counts map[string]int
}

// ScanDir builds a tree payload from the directory at root. Subdirectories
// become inner nodes and files with an allowed extension become leaves
// carrying their path relative to root. A trailing "metadata" node lists one
// "<ext>: <count>" child per extension seen. Other files are skipped.
func ScanDir(ctx context.Context, root string, opts ScanOptions) (*DirNode, error) {
	defer metrics.Timer(metrics.DirScan)()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDir, root)
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = AllowedExtensions
	}
	s := &scanner{root: abs, allowed: make(map[string]bool, len(exts)), counts: make(map[string]int)}
	for _, e := range exts {
		s.allowed[strings.ToLower(e)] = true
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 8
	}
	slots := make([]*DirNode, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, e := range entries {
		path := filepath.Join(abs, e.Name())
		if e.IsDir() {
			g.Go(func() error {
				node, err := s.walk(ctx, path, e.Name())
				slots[i] = node
				return err
			})
			continue
		}
		slots[i] = s.file(e)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	top := &DirNode{Name: filepath.Base(abs)}
	for _, n := range slots {
		if n != nil {
			top.Children = append(top.Children, n)
		}
	}
	top.Children = append(top.Children, s.metadata())
	return top, nil
}

func (s *scanner) walk(ctx context.Context, dir, name string) (*DirNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	node := &DirNode{Name: name}
	for _, e := range entries {
		if e.IsDir() {
			child, err := s.walk(ctx, filepath.Join(dir, e.Name()), e.Name())
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
			continue
		}
		if leaf := s.fileIn(dir, e); leaf != nil {
			node.Children = append(node.Children, leaf)
		}
	}
	return node, nil
}

func (s *scanner) file(e os.DirEntry) *DirNode {
	return s.fileIn(s.root, e)
}

// fileIn returns the leaf for e, or nil when e is not a regular file with an
// allowed extension.
func (s *scanner) fileIn(dir string, e os.DirEntry) *DirNode {
	if !e.Type().IsRegular() {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(e.Name()))
	if !s.allowed[ext] {
		return nil
	}
	s.mu.Lock()
	s.counts[ext]++
	s.mu.Unlock()

	rel, err := filepath.Rel(s.root, filepath.Join(dir, e.Name()))
	if err != nil {
		rel = e.Name()
	}
	return &DirNode{Name: e.Name(), Path: filepath.ToSlash(rel)}
}

func (s *scanner) metadata() *DirNode {
	node := &DirNode{Name: MetadataName}
	exts := make([]string, 0, len(s.counts))
	for ext := range s.counts {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	for _, ext := range exts {
		node.Children = append(node.Children, &DirNode{Name: fmt.Sprintf("%s: %d", ext, s.counts[ext])})
	}
	return node
}

// Outline renders t as an indented text tree, one node per line, using box
// drawing guides. label formats each node; nil means the plain name.
func Outline(t *hierarchy.Tree, label func(*hierarchy.Node) string) string {
	if t == nil || t.Len() == 0 {
		return ""
	}
	if label == nil {
		label = func(n *hierarchy.Node) string { return n.Name }
	}
	var b strings.Builder
	var walk func(i hierarchy.Index, prefix string)
	walk = func(i hierarchy.Index, prefix string) {
		kids := t.Node(i).Children
		for k, c := range kids {
			branch, cont := "├── ", "│   "
			if k == len(kids)-1 {
				branch, cont = "└── ", "    "
			}
			b.WriteString(prefix + branch + label(t.Node(c)) + "\n")
			walk(c, prefix+cont)
		}
	}
	b.WriteString(label(t.Node(t.Root())) + "\n")
	walk(t.Root(), "")
	return b.String()
}

// PathLabel shows a node's relative path next to its name when it has one.
func PathLabel(n *hierarchy.Node) string {
	if p, ok := n.Attr("path"); ok {
		return fmt.Sprintf("%s (Path: %s)", n.Name, p)
	}
	return n.Name
}
