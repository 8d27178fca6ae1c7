package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	agentcontext "github.com/Ryvos/ryvos-sub000/internal/agent/context"
	"github.com/Ryvos/ryvos-sub000/internal/observability"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// ToolCall is one tool_use block the model produced in a single turn,
// paired with the turn metadata the gate and journal need.
type ToolCall struct {
	ToolUseID string
	ToolName  string
	Input     json.RawMessage
}

// ToolCallOutcome is the result of routing one ToolCall through the gate.
type ToolCallOutcome struct {
	ToolUseID string
	ToolName  string
	Input     json.RawMessage
	Result    models.ToolResult
	Err       error
}

// gate is the subset of security.Gate the loop depends on, declared locally
// so this file does not import internal/security directly and create a
// heavier coupling than its Execute and Definitions calls warrant.
type gate interface {
	Execute(ctx context.Context, sessionID, runID, toolUseID, toolName string, rawInput []byte) (models.ToolResult, error)
	Definitions() []models.ToolDefinition
}

// runToolTurn dispatches every tool call the model requested in one turn,
// in parallel (bounded by maxConcurrency) when parallel is true, or strictly
// in call order otherwise. Results preserve the input order regardless of
// completion order, matching the teacher's ExecuteConcurrently contract.
//
// Grounded on the teacher's tool_exec.go ExecuteConcurrently semaphore
// pattern and agent_loop.rs's per-turn tool dispatch.
func runToolTurn(ctx context.Context, g gate, sessionID, runID string, calls []ToolCall, parallel bool, maxConcurrency int, perToolTimeout time.Duration, maxOutputTokens int, tracer *observability.Tracer, metrics *Metrics) []ToolCallOutcome {
	outcomes := make([]ToolCallOutcome, len(calls))

	if !parallel {
		for i, c := range calls {
			outcomes[i] = executeOne(ctx, g, sessionID, runID, c, perToolTimeout, maxOutputTokens, tracer, metrics)
		}
		return outcomes
	}

	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, c := range calls {
		wg.Add(1)
		go func(idx int, call ToolCall) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[idx] = ToolCallOutcome{ToolUseID: call.ToolUseID, ToolName: call.ToolName, Input: call.Input, Err: ctx.Err()}
				return
			}
			outcomes[idx] = executeOne(ctx, g, sessionID, runID, call, perToolTimeout, maxOutputTokens, tracer, metrics)
		}(i, c)
	}
	wg.Wait()
	return outcomes
}

func executeOne(ctx context.Context, g gate, sessionID, runID string, call ToolCall, perToolTimeout time.Duration, maxOutputTokens int, tracer *observability.Tracer, metrics *Metrics) ToolCallOutcome {
	callCtx := ctx
	if perToolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, perToolTimeout)
		defer cancel()
	}

	start := time.Now()
	var span trace.Span
	if tracer != nil {
		callCtx, span = tracer.TraceToolExecution(callCtx, call.ToolName)
	}

	result, err := g.Execute(callCtx, sessionID, runID, call.ToolUseID, call.ToolName, call.Input)
	if err == nil {
		result.Content = agentcontext.CompactToolOutput(result.Content, maxOutputTokens)
	}

	if tracer != nil {
		tracer.RecordError(span, err)
		span.End()
	}
	if metrics != nil {
		metrics.ToolDuration.WithLabelValues(call.ToolName).Observe(time.Since(start).Seconds())
	}
	return ToolCallOutcome{ToolUseID: call.ToolUseID, ToolName: call.ToolName, Input: call.Input, Result: result, Err: err}
}

// resultsToContentBlocks turns a turn's outcomes into the ContentBlocks of
// the single tool-result message appended to the conversation, per §4.7
// step 8.
func resultsToContentBlocks(outcomes []ToolCallOutcome) []models.ContentBlock {
	blocks := make([]models.ContentBlock, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			blocks = append(blocks, models.ToolResultBlock(o.ToolUseID, o.Err.Error(), true))
			continue
		}
		blocks = append(blocks, models.ToolResultBlock(o.ToolUseID, o.Result.Content, o.Result.IsError))
	}
	return blocks
}
