package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
)

// MustBuild builds a tree from a fixture, failing the test on error.
func MustBuild(t testing.TB, f *TreeFixture, opts ...hierarchy.BuildOption) *hierarchy.Tree {
	t.Helper()
	tree, err := hierarchy.Build(f.Payload(), opts...)
	if err != nil {
		t.Fatalf("build fixture: %v", err)
	}
	return tree
}

// Names maps indices to node names, preserving order.
func Names(tree *hierarchy.Tree, idx []hierarchy.Index) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = tree.Node(i).Name
	}
	return out
}

// Find returns the index of the first node named name in preorder.
func Find(t testing.TB, tree *hierarchy.Tree, name string) hierarchy.Index {
	t.Helper()
	for i := range tree.Descendants() {
		if tree.Node(i).Name == name {
			return i
		}
	}
	t.Fatalf("no node named %q", name)
	return hierarchy.NoIndex
}

// AssertNames checks the names of idx, in order.
func AssertNames(t testing.TB, tree *hierarchy.Tree, idx []hierarchy.Index, want ...string) {
	t.Helper()
	got := Names(tree, idx)
	if !slices.Equal(got, want) {
		t.Errorf("expected nodes %v, got %v", want, got)
	}
}

// AssertAncestorsVisible fails if any visible node has a non-visible
// ancestor.
func AssertAncestorsVisible(t testing.TB, tree *hierarchy.Tree, visible []hierarchy.Index) {
	t.Helper()
	in := make(map[hierarchy.Index]bool, len(visible))
	for _, i := range visible {
		in[i] = true
	}
	for _, i := range visible {
		for a := range tree.Ancestors(i) {
			if !in[a] {
				t.Errorf("node %q visible but ancestor %q is not", tree.Node(i).Name, tree.Node(a).Name)
			}
		}
	}
}

// AssertJSONEqual compares two values after encoding both as JSON.
func AssertJSONEqual(t testing.TB, expected, actual any) {
	t.Helper()
	want, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("marshal expected: %v", err)
	}
	got, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("marshal actual: %v", err)
	}
	if string(want) != string(got) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", want, got)
	}
}

// WritePayload writes the fixture to dir/name and returns the path.
func WritePayload(t testing.TB, dir, name string, f *TreeFixture) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, f.Payload(), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return path
}

// ContainsAll reports the first needle missing from haystack, or "".
func ContainsAll(haystack string, needles ...string) string {
	for _, n := range needles {
		if !strings.Contains(haystack, n) {
			return n
		}
	}
	return ""
}
