// Package search narrows the visible tree to the nodes matching a query,
// always keeping each match's ancestor chain so the path to it stays on
// screen.
package search

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/metrics"
)

// Field selects what a query is matched against.
type Field string

const (
	FieldName      Field = "name"
	FieldAttribute Field = "attribute"
)

// DefaultAttributeKey is the attribute searched when the field is
// FieldAttribute and the query names no key.
const DefaultAttributeKey = "file_analysis"

// ErrUnknownField is returned by ParseField.
var ErrUnknownField = errors.New("unknown search field")

// ParseField accepts "name", "attribute", and the attribute key
// "file_analysis" that the browser selector sends.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name":
		return FieldName, nil
	case "attribute", DefaultAttributeKey:
		return FieldAttribute, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Query is one search request.
type Query struct {
	Text         string `json:"text"`
	Field        Field  `json:"field"`
	AttributeKey string `json:"attribute_key,omitempty"`
}

// Empty reports whether the query matches everything.
func (q Query) Empty() bool {
	return q.Text == ""
}

func (q Query) key() string {
	if q.AttributeKey == "" {
		return DefaultAttributeKey
	}
	return q.AttributeKey
}

// Match reports whether n satisfies q. Matching is a case-insensitive
// substring test. A node lacking the searched attribute never matches a
// non-empty query.
func (q Query) Match(n *hierarchy.Node) bool {
	if q.Empty() {
		return true
	}
	var hay string
	switch q.Field {
	case FieldAttribute:
		v, ok := n.Attr(q.key())
		if !ok {
			return false
		}
		hay = v
	default:
		hay = n.Name
	}
	return containsFold(hay, q.Text)
}

// containsFold is strings.Contains after lower-casing both sides.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Matches returns the matching nodes in preorder, regardless of collapse
// state.
func Matches(t *hierarchy.Tree, q Query) []hierarchy.Index {
	var out []hierarchy.Index
	for i := range t.Descendants() {
		if q.Match(t.Node(i)) {
			out = append(out, i)
		}
	}
	return out
}

// Filter recomputes every hidden flag in st: everything is hidden, then each
// match and all of its ancestors are revealed. It returns the number of
// direct matches. An empty query reveals the whole tree. Expanded flags are
// left alone, so a match under a collapsed ancestor stays out of view until
// that ancestor is expanded.
func Filter(t *hierarchy.Tree, st *hierarchy.State, q Query) int {
	defer metrics.TimerWithCallback(metrics.FilterApply, func(d time.Duration) {
		debug.LogTiming("search.Filter", d)
	})()

	if q.Empty() {
		for i := range t.Descendants() {
			st.SetHidden(i, false)
		}
		return t.Len()
	}

	for i := range t.Descendants() {
		st.SetHidden(i, true)
	}
	matches := 0
	for i := range t.Descendants() {
		if !q.Match(t.Node(i)) {
			continue
		}
		matches++
		st.SetHidden(i, false)
		for a := range t.Ancestors(i) {
			if !st.Hidden(a) {
				break
			}
			st.SetHidden(a, false)
		}
	}
	debug.Log("search: %q in %s matched %d of %d", q.Text, q.Field, matches, t.Len())
	return matches
}
