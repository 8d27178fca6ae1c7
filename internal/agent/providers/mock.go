package providers

import (
	"context"

	"github.com/Ryvos/ryvos-sub000/internal/agent"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// ScriptedTurn is one canned response a MockProvider returns from a single
// Complete call, as a sequence of deltas.
type ScriptedTurn struct {
	Deltas []models.StreamDelta
	Err    error
}

// TextTurn builds a ScriptedTurn that emits plain text then an end_turn
// stop reason, with no tool calls — the common case in tests.
func TextTurn(text string) ScriptedTurn {
	return ScriptedTurn{Deltas: []models.StreamDelta{
		{Kind: models.DeltaText, Text: text},
		{Kind: models.DeltaStopReason, StopReason: "end_turn"},
	}}
}

// ToolCallTurn builds a ScriptedTurn that requests exactly one tool call.
func ToolCallTurn(toolUseID, toolName, inputJSON string) ScriptedTurn {
	return ScriptedTurn{Deltas: []models.StreamDelta{
		{Kind: models.DeltaToolUse, ToolUseID: toolUseID, ToolName: toolName, InputDelta: inputJSON},
		{Kind: models.DeltaStopReason, StopReason: "tool_use"},
	}}
}

// MockProvider is a scripted agent.LLMProvider: each call to Complete
// returns the next ScriptedTurn in order, looping the last turn forever
// once the script is exhausted so a test's loop never blocks waiting on a
// turn that was never scripted.
//
// Grounded on the teacher's test style of hand-built fakes over the
// provider interface rather than a mocking framework (no testify/mockery
// dependency anywhere in the example pack).
type MockProvider struct {
	script []ScriptedTurn
	calls  int
}

// NewMockProvider builds a MockProvider that returns turns in order.
func NewMockProvider(script ...ScriptedTurn) *MockProvider {
	return &MockProvider{script: script}
}

func (m *MockProvider) Name() string { return "mock" }

// Calls reports how many times Complete has been invoked, for tests that
// assert the loop stopped after the expected number of turns.
func (m *MockProvider) Calls() int { return m.calls }

func (m *MockProvider) Complete(ctx context.Context, req agent.CompletionRequest) (<-chan agent.StreamEvent, error) {
	idx := m.calls
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.calls++
	if idx < 0 {
		ch := make(chan agent.StreamEvent)
		close(ch)
		return ch, nil
	}
	turn := m.script[idx]

	ch := make(chan agent.StreamEvent, len(turn.Deltas)+1)
	go func() {
		defer close(ch)
		if turn.Err != nil {
			select {
			case ch <- agent.StreamEvent{Err: turn.Err}:
			case <-ctx.Done():
			}
			return
		}
		for _, d := range turn.Deltas {
			select {
			case ch <- agent.StreamEvent{Delta: d}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
