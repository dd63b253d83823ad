// Package detail turns a node into the key/value panel shown when it is
// selected.
package detail

import (
	"strings"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
)

// Labels maps well-known keys to their display label. Unknown keys are shown
// as-is.
var Labels = map[string]string{
	"name":          "File Name",
	"file_analysis": "File Overview",
}

// Field is one row of the panel.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Panel is the projection of a single node.
type Panel struct {
	ID     hierarchy.ID `json:"id"`
	Fields []Field      `json:"fields"`
}

// Label returns the display label for key.
func Label(key string) string {
	if l, ok := Labels[key]; ok {
		return l
	}
	return key
}

// Project builds the panel for n: the name first, then every attribute in
// key order. Children are never part of the panel.
func Project(n *hierarchy.Node) Panel {
	p := Panel{
		ID:     n.ID,
		Fields: make([]Field, 0, len(n.Attrs)+1),
	}
	p.Fields = append(p.Fields, Field{Key: hierarchy.KeyName, Label: Label(hierarchy.KeyName), Value: n.Name})
	for _, a := range n.Attrs {
		p.Fields = append(p.Fields, Field{Key: a.Key, Label: Label(a.Key), Value: a.Value})
	}
	return p
}

// Get returns the value shown for key.
func (p Panel) Get(key string) (string, bool) {
	for _, f := range p.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Text renders the panel as "Label: value" lines.
func (p Panel) Text() string {
	var b strings.Builder
	for k, f := range p.Fields {
		if k > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	return b.String()
}

// Markdown renders the panel as a bold-label list for terminal rendering.
func (p Panel) Markdown() string {
	var b strings.Builder
	for _, f := range p.Fields {
		b.WriteString("- **")
		b.WriteString(f.Label)
		b.WriteString(":** ")
		b.WriteString(strings.ReplaceAll(f.Value, "\n", " "))
		b.WriteByte('\n')
	}
	return b.String()
}
