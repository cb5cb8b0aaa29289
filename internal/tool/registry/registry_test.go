package registry

import (
	"context"
	"testing"

	"rag-faq/internal/tool"
)

type namedTool struct {
	name string
}

func (t namedTool) Name() string        { return t.name }
func (t namedTool) Description() string { return "desc " + t.name }
func (t namedTool) Schema() tool.Schema {
	return tool.Schema{
		Type:       "object",
		Properties: map[string]tool.SchemaProperty{"query": {Type: "string"}},
		Required:   []string{"query"},
	}
}
func (t namedTool) Execute(context.Context, map[string]any) (tool.ToolResult, error) {
	return tool.ToolResult{Content: "ok"}, nil
}

func TestRegistry_RegisterAndDeclared(t *testing.T) {
	r := New()
	r.Register(namedTool{name: "knowledge.search"})

	if !r.Declared("knowledge.search") {
		t.Fatal("expected knowledge.search to be declared")
	}
	if r.Declared("db.delete") {
		t.Fatal("db.delete must not be declared")
	}
	got, ok := r.Get("knowledge.search")
	if !ok || got.Name() != "knowledge.search" {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
}

func TestRegistry_ListIsSorted(t *testing.T) {
	r := New()
	r.Register(namedTool{name: "b.tool"})
	r.Register(namedTool{name: "a.tool"})
	r.Register(namedTool{name: "c.tool"})

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(list))
	}
	names := []string{list[0].Name(), list[1].Name(), list[2].Name()}
	want := []string{"a.tool", "b.tool", "c.tool"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order mismatch: %v", names)
		}
	}
}

func TestRegistry_ToolInfos(t *testing.T) {
	r := New()
	r.Register(namedTool{name: "knowledge.search"})

	infos := r.ToolInfos()
	if len(infos) != 1 {
		t.Fatalf("expected 1 info, got %d", len(infos))
	}
	if infos[0].Name != "knowledge.search" {
		t.Fatalf("unexpected name %s", infos[0].Name)
	}
}
