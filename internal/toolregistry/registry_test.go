package toolregistry

import (
	"context"
	"testing"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

type stubTool struct {
	name   string
	schema []byte
	tier   models.SecurityTier
}

func (s stubTool) Name() string                   { return s.name }
func (s stubTool) Description() string            { return "stub tool for tests" }
func (s stubTool) InputSchema() []byte            { return s.schema }
func (s stubTool) Tier() models.SecurityTier      { return s.tier }
func (s stubTool) Execute(ctx context.Context, input []byte) (models.ToolResult, error) {
	return models.ToolResult{Content: "ok"}, nil
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	tool := stubTool{name: "echo", schema: []byte(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`), tier: models.TierT0}

	if err := r.Register(tool); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := r.Get("echo")
	if !ok || got.Name() != "echo" {
		t.Fatalf("Get(\"echo\") = %v, %v", got, ok)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := New()
	tool := stubTool{name: "echo", schema: []byte(`{}`)}
	if err := r.Register(tool); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(tool); err == nil {
		t.Fatal("expected error registering duplicate tool name")
	}
}

func TestRegisterInvalidSchemaFails(t *testing.T) {
	r := New()
	tool := stubTool{name: "broken", schema: []byte(`{"type": 123}`)}
	if err := r.Register(tool); err == nil {
		t.Fatal("expected error for malformed schema")
	}
}

func TestValidateInput(t *testing.T) {
	r := New()
	tool := stubTool{name: "echo", schema: []byte(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)}
	if err := r.Register(tool); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := r.ValidateInput("echo", map[string]any{"text": "hi"}); err != nil {
		t.Fatalf("ValidateInput valid input: %v", err)
	}
	if err := r.ValidateInput("echo", map[string]any{}); err == nil {
		t.Fatal("expected validation error for missing required field")
	}
}

func TestDefinitionsAndList(t *testing.T) {
	r := New()
	_ = r.Register(stubTool{name: "a", schema: []byte(`{}`)})
	_ = r.Register(stubTool{name: "b", schema: []byte(`{}`)})

	if len(r.List()) != 2 {
		t.Fatalf("List() len = %d, want 2", len(r.List()))
	}
	if len(r.Definitions()) != 2 {
		t.Fatalf("Definitions() len = %d, want 2", len(r.Definitions()))
	}
}
