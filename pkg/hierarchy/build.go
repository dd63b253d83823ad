package hierarchy

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/treescope/pkg/metrics"
)

// Parse failures. They are always returned wrapped in a *ParseError that
// records where in the payload the problem was found.
var (
	ErrEmptyPayload = errors.New("empty payload")
	ErrNotObject    = errors.New("node is not a JSON object")
	ErrMissingName  = errors.New("node has no string \"name\"")
	ErrBadChildren  = errors.New("\"children\" is not an array of objects")
	ErrTooDeep      = errors.New("tree exceeds maximum depth")
)

// ParseError reports a malformed tree payload. No partial tree is ever
// returned alongside it.
type ParseError struct {
	Path string // JSON path of the offending node, e.g. $.children[2]
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "parse tree: " + e.Err.Error()
	}
	return fmt.Sprintf("parse tree at %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reserved payload keys. Everything else on a node is an attribute.
const (
	KeyName     = "name"
	KeyChildren = "children"
)

// DefaultMaxDepth bounds recursion on hostile payloads.
const DefaultMaxDepth = 1024

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	firstID  ID
	maxDepth int
}

// WithFirstID sets the id given to the root; descendants count up from it.
// Sessions pass the previous tree's MaxID()+1 so ids are never reused.
func WithFirstID(id ID) BuildOption {
	return func(o *buildOptions) {
		o.firstID = id
	}
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) BuildOption {
	return func(o *buildOptions) {
		o.maxDepth = depth
	}
}

type builder struct {
	nodes    []Node
	next     ID
	maxDepth int
}

// Build parses a nested tree payload into a Tree. The payload is a JSON
// object with a string "name", an optional "children" array of the same
// shape, and any number of extra attributes. A JSON string that itself holds
// such an object is accepted too.
func Build(data []byte, opts ...BuildOption) (*Tree, error) {
	defer metrics.Timer(metrics.TreeParse)()

	o := buildOptions{firstID: 1, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}

	payload := bytes.TrimSpace(data)
	if len(payload) == 0 {
		return nil, &ParseError{Err: ErrEmptyPayload}
	}
	if payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, &ParseError{Err: err}
		}
		payload = bytes.TrimSpace([]byte(inner))
		if len(payload) == 0 {
			return nil, &ParseError{Err: ErrEmptyPayload}
		}
	}

	b := &builder{next: o.firstID, maxDepth: o.maxDepth}
	if err := b.add(payload, NoIndex, 0, "$"); err != nil {
		return nil, err
	}

	t := &Tree{
		nodes: b.nodes,
		byID:  make(map[ID]Index, len(b.nodes)),
	}
	for i := range t.nodes {
		t.byID[t.nodes[i].ID] = Index(i)
	}
	return t, nil
}

// MustBuild is Build for fixtures known to be valid.
func MustBuild(data string) *Tree {
	t, err := Build([]byte(data))
	if err != nil {
		panic(err)
	}
	return t
}

func (b *builder) add(raw json.RawMessage, parent Index, depth int, path string) error {
	if depth > b.maxDepth {
		return &ParseError{Path: path, Err: ErrTooDeep}
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return &ParseError{Path: path, Err: ErrNotObject}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return &ParseError{Path: path, Err: err}
	}

	var name string
	nameRaw, ok := obj[KeyName]
	if !ok || json.Unmarshal(nameRaw, &name) != nil {
		return &ParseError{Path: path, Err: ErrMissingName}
	}

	idx := Index(len(b.nodes))
	b.nodes = append(b.nodes, Node{
		ID:     b.next,
		Name:   name,
		Attrs:  attrsOf(obj),
		Parent: parent,
		Depth:  depth,
	})
	b.next++

	childrenRaw, ok := obj[KeyChildren]
	if !ok || isNull(childrenRaw) {
		return nil
	}
	var children []json.RawMessage
	if err := json.Unmarshal(childrenRaw, &children); err != nil {
		return &ParseError{Path: path, Err: ErrBadChildren}
	}
	for k, child := range children {
		childIdx := Index(len(b.nodes))
		if err := b.add(child, idx, depth+1, fmt.Sprintf("%s.children[%d]", path, k)); err != nil {
			return err
		}
		// b.nodes may have grown; always go through the slice.
		b.nodes[idx].Children = append(b.nodes[idx].Children, childIdx)
	}
	return nil
}

// attrsOf collects the non-reserved keys in lexical order.
func attrsOf(obj map[string]json.RawMessage) []Attr {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if k == KeyName || k == KeyChildren {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	attrs := make([]Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, Attr{Key: k, Value: displayValue(obj[k])})
	}
	return attrs
}

// displayValue renders an attribute the way a template literal would:
// strings unquoted, everything else as compact JSON text.
func displayValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
