// Package providers implements LLMProvider integrations for the agent
// runtime: a scripted MockProvider for tests and a production
// AnthropicProvider backed by github.com/anthropics/anthropic-sdk-go.
//
// Grounded on the teacher's internal/agent/providers/anthropic.go (SSE
// event-to-chunk translation, message/tool conversion), trimmed of the
// teacher's retry loop, computer-use beta API and vision attachment
// handling; Complete does not retry.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Ryvos/ryvos-sub000/internal/agent"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// AnthropicConfig configures an AnthropicProvider. Only APIKey is required;
// the rest default the same way the teacher's AnthropicConfig does.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// AnthropicProvider implements agent.LLMProvider against the Claude
// Messages API, streaming content_block_delta events into StreamEvents.
type AnthropicProvider struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// NewAnthropicProvider builds a provider from config, applying the same
// zero-value defaults as the rest of this codebase's NewXxx constructors.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("providers: anthropic API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-5"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete streams one turn. The Anthropic SDK's NewStreaming call does not
// fail synchronously; connection and server errors surface once iteration
// begins, via the stream's Err() method, and are reported as a terminal
// StreamEvent rather than retried — retrying after any deltas have already
// reached the caller would duplicate partial output, so maxRetries/
// retryDelay are reserved for a future reconnect-before-first-byte policy
// rather than applied here.
func (p *AnthropicProvider) Complete(ctx context.Context, req agent.CompletionRequest) (<-chan agent.StreamEvent, error) {
	out := make(chan agent.StreamEvent)

	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}

	go func() {
		defer close(out)
		stream := p.client.Messages.NewStreaming(ctx, params)
		p.processStream(stream, out)
	}()

	return out, nil
}

func (p *AnthropicProvider) buildParams(req agent.CompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("providers: converting messages: %w", err)
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("providers: converting tools: %w", err)
		}
		params.Tools = tools
	}
	return params, nil
}

// processStream converts content_block_start/_delta/_stop events into
// StreamEvents. Each input_json_delta fragment is forwarded as it arrives,
// tagged with the current tool_use block's id and name; the fragments are
// not accumulated here.
func (p *AnthropicProvider) processStream(stream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}, out chan<- agent.StreamEvent) {
	var curToolID, curToolName string

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				tu := block.AsToolUse()
				curToolID, curToolName = tu.ID, tu.Name
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- agent.StreamEvent{Delta: models.StreamDelta{Kind: models.DeltaText, Text: delta.Text}}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					out <- agent.StreamEvent{Delta: models.StreamDelta{Kind: models.DeltaThinking, Text: delta.Thinking}}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					out <- agent.StreamEvent{Delta: models.StreamDelta{
						Kind: models.DeltaToolUse, ToolUseID: curToolID, ToolName: curToolName, InputDelta: delta.PartialJSON,
					}}
				}
			}

		case "message_delta":
			stopReason := string(event.AsMessageDelta().Delta.StopReason)
			if stopReason != "" {
				out <- agent.StreamEvent{Delta: models.StreamDelta{Kind: models.DeltaStopReason, StopReason: stopReason}}
			}

		case "message_stop":
			return

		case "error":
			out <- agent.StreamEvent{Err: errors.New("providers: anthropic stream error")}
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- agent.StreamEvent{Err: p.wrapError(err)}
	}
}

func (p *AnthropicProvider) convertMessages(messages []models.ChatMessage) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}
		var blocks []anthropic.ContentBlockParamUnion
		for _, b := range msg.Content {
			switch b.Type {
			case models.ContentText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case models.ContentToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			case models.ContentToolUse:
				var input map[string]any
				if len(b.Input) > 0 {
					if err := json.Unmarshal(b.Input, &input); err != nil {
						return nil, fmt.Errorf("tool_use %s: invalid input: %w", b.ID, err)
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ID, input, b.Name))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}
	return result, nil
}

func (p *AnthropicProvider) convertTools(tools []models.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid schema: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		result = append(result, param)
	}
	return result, nil
}

func (p *AnthropicProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && p.isRetryableStatus(apiErr.StatusCode) {
		return fmt.Errorf("providers: anthropic retryable error (status %d): %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("providers: anthropic request failed: %w", err)
}

func (p *AnthropicProvider) isRetryableStatus(status int) bool {
	return status == 429 || (status >= 500 && status < 600)
}
