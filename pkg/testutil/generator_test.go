package testutil

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
)

func TestChain(t *testing.T) {
	f := NewDefault().Chain(5)
	if f.Size() != 5 {
		t.Fatalf("expected 5 nodes, got %d", f.Size())
	}
	depth := 0
	for cur := f; len(cur.Children) > 0; cur = cur.Children[0] {
		depth++
	}
	if depth != 4 {
		t.Errorf("expected depth 4, got %d", depth)
	}
}

func TestStar(t *testing.T) {
	f := NewDefault().Star(7)
	if len(f.Children) != 7 {
		t.Errorf("expected 7 spokes, got %d", len(f.Children))
	}
}

func TestBalanced(t *testing.T) {
	f := NewDefault().Balanced(3, 2)
	if f.Size() != 7 {
		t.Errorf("expected 7 nodes, got %d", f.Size())
	}
}

func TestRandomSize(t *testing.T) {
	f := NewDefault().Random(40)
	if f.Size() != 40 {
		t.Errorf("expected 40 nodes, got %d", f.Size())
	}
}

func TestDeterminism(t *testing.T) {
	a := New(DefaultConfig()).Random(30).Payload()
	b := New(DefaultConfig()).Random(30).Payload()
	if !bytes.Equal(a, b) {
		t.Error("same seed produced different payloads")
	}
}

func TestPayloadBuilds(t *testing.T) {
	tree := MustBuild(t, Scenario())
	if tree.Len() != 4 {
		t.Errorf("expected 4 nodes, got %d", tree.Len())
	}
	c := Find(t, tree, "c")
	if v, _ := tree.Node(c).Attr("file_analysis"); v != "nested leaf" {
		t.Errorf("expected attribute to survive encoding, got %q", v)
	}
}

func TestRapidTreeBuilds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := RapidTree(30).Draw(rt, "tree")
		tree, err := hierarchy.Build(f.Payload())
		if err != nil {
			rt.Fatalf("build: %v", err)
		}
		if tree.Len() != f.Size() {
			rt.Fatalf("built %d nodes from a %d node fixture", tree.Len(), f.Size())
		}
	})
}
