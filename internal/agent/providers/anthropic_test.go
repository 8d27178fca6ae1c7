package providers

import (
	"encoding/json"
	"testing"

	"github.com/Ryvos/ryvos-sub000/internal/agent"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected an error when APIKey is empty")
	}
}

func TestNewAnthropicProviderAppliesDefaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	if p.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", p.maxRetries)
	}
	if p.defaultModel != "claude-sonnet-4-5" {
		t.Errorf("defaultModel = %q, want claude-sonnet-4-5", p.defaultModel)
	}
	if p.Name() != "anthropic" {
		t.Errorf("Name() = %q, want anthropic", p.Name())
	}
}

func TestConvertMessagesDropsSystemAndEmptyTurns(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}

	history := []models.ChatMessage{
		{Role: models.RoleSystem, Content: []models.ContentBlock{models.TextBlock("be helpful")}},
		models.NewUserMessage("hello"),
		{Role: models.RoleAssistant, Content: []models.ContentBlock{models.TextBlock("hi there")}},
		{Role: models.RoleAssistant, Content: nil},
	}

	converted, err := p.convertMessages(history)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(converted) != 2 {
		t.Fatalf("len(converted) = %d, want 2 (system and empty turns dropped)", len(converted))
	}
}

func TestConvertMessagesRejectsInvalidToolInput(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}

	history := []models.ChatMessage{
		{Role: models.RoleAssistant, Content: []models.ContentBlock{
			models.ToolUseBlock("tu_1", "shell", json.RawMessage(`not json`)),
		}},
	}

	if _, err := p.convertMessages(history); err == nil {
		t.Fatal("expected an error for malformed tool_use input")
	}
}

func TestConvertToolsRejectsInvalidSchema(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}

	tools := []models.ToolDefinition{{Name: "shell", InputSchema: json.RawMessage(`not json`)}}
	if _, err := p.convertTools(tools); err == nil {
		t.Fatal("expected an error for malformed input schema")
	}
}

func TestBuildParamsDefaultsModelAndMaxTokens(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test", DefaultModel: "claude-haiku"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}

	params, err := p.buildParams(agent.CompletionRequest{Messages: []models.ChatMessage{models.NewUserMessage("hi")}})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if string(params.Model) != "claude-haiku" {
		t.Errorf("Model = %q, want claude-haiku", params.Model)
	}
	if params.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", params.MaxTokens)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	p := &AnthropicProvider{}
	cases := map[int]bool{429: true, 500: true, 503: true, 400: false, 404: false, 200: false}
	for status, want := range cases {
		if got := p.isRetryableStatus(status); got != want {
			t.Errorf("isRetryableStatus(%d) = %v, want %v", status, got, want)
		}
	}
}
