package detail

import (
	"testing"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
)

func TestProject_LabelsAndOrder(t *testing.T) {
	tree, err := hierarchy.Build([]byte(`{"name":"report.csv","size":12,"file_analysis":"Quarterly sales","children":[{"name":"x"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	p := Project(tree.Node(tree.Root()))

	want := []Field{
		{Key: "name", Label: "File Name", Value: "report.csv"},
		{Key: "file_analysis", Label: "File Overview", Value: "Quarterly sales"},
		{Key: "size", Label: "size", Value: "12"},
	}
	if len(p.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %+v", len(want), p.Fields)
	}
	for i := range want {
		if p.Fields[i] != want[i] {
			t.Errorf("field %d: expected %+v, got %+v", i, want[i], p.Fields[i])
		}
	}
	if _, ok := p.Get("children"); ok {
		t.Error("children must not appear in the panel")
	}
	if p.ID != tree.Node(tree.Root()).ID {
		t.Errorf("expected panel id %d, got %d", tree.Node(tree.Root()).ID, p.ID)
	}
}

func TestProject_ValueVerbatim(t *testing.T) {
	tree, err := hierarchy.Build([]byte(`{"name":"a","note":"<b>raw</b>"}`))
	if err != nil {
		t.Fatal(err)
	}
	p := Project(tree.Node(0))
	if v, _ := p.Get("note"); v != "<b>raw</b>" {
		t.Errorf("expected value verbatim, got %q", v)
	}
}

func TestPanelText(t *testing.T) {
	p := Panel{Fields: []Field{
		{Key: "name", Label: "File Name", Value: "a"},
		{Key: "file_analysis", Label: "File Overview", Value: "b"},
	}}
	if got := p.Text(); got != "File Name: a\nFile Overview: b" {
		t.Errorf("unexpected text %q", got)
	}
	if got := p.Markdown(); got != "- **File Name:** a\n- **File Overview:** b\n" {
		t.Errorf("unexpected markdown %q", got)
	}
}

func TestLabelFallback(t *testing.T) {
	if Label("owner") != "owner" {
		t.Errorf("unknown keys should be shown raw, got %q", Label("owner"))
	}
}
