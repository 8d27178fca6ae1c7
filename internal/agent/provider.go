// Package agent implements the ReAct loop runtime (component C6): the
// LLM-driving turn loop, tool dispatch, reflexion-hint injection on
// repeated tool failure, and context-budget maintenance between turns.
//
// Grounded on the teacher's internal/agent package (LLMProvider/Tool
// interface shapes, context-value helpers) and on
// original_source/crates/ryvos-agent/src/agent_loop.rs for the loop's
// exact control flow.
package agent

import (
	"context"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// LLMProvider is the contract the runtime drives each turn through.
// Implementations stream a completion as a sequence of StreamDeltas;
// Complete must close the returned channel when the stream ends, whether
// successfully or not, and must select on ctx so a cancelled run does not
// leak the streaming goroutine.
type LLMProvider interface {
	// Complete streams one assistant turn given the conversation so far.
	Complete(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
	// Name identifies the provider for logging and tracing.
	Name() string
}

// CompletionRequest is everything a provider needs to produce one turn.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []models.ChatMessage
	Tools     []models.ToolDefinition
	MaxTokens int
}

// StreamEvent is one item from a provider's completion stream: either a
// StreamDelta fragment or a terminal error. Exactly one of Delta/Err is
// set; a stream ends when the channel closes, with Err populated on the
// final event if the stream failed.
type StreamEvent struct {
	Delta models.StreamDelta
	Err   error
}
