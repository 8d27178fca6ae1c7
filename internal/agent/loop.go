package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	agentcontext "github.com/Ryvos/ryvos-sub000/internal/agent/context"
	"github.com/Ryvos/ryvos-sub000/internal/checkpoint"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// RunRequest starts one ReAct loop run over an existing or new session.
type RunRequest struct {
	SessionID   string
	RunID       string
	UserMessage string
}

// RunResult is what the caller gets back once a run stops, however it stopped.
type RunResult struct {
	FinalText string
	Turns     int
	StopKind  string // "complete", "max_turns", "max_duration", "guardian_cancelled", "cancelled", "error"
}

// Run drives the ReAct loop to completion: build context, stream a
// completion, dispatch any requested tool calls through the security gate,
// append results, and repeat until the model stops requesting tools, a
// limit is hit, or the guardian aborts.
//
// Grounded on original_source/crates/ryvos-agent/src/agent_loop.rs's
// AgentRuntime.run() control flow, restructured around Go channels for the
// streaming and tool-dispatch steps the teacher's tool_exec.go models.
func (r *Runtime) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	start := time.Now()
	log := r.log.WithContext(ctx)

	history, err := r.store.History(ctx, req.SessionID)
	if err != nil {
		return RunResult{}, &DatabaseError{Op: "load history", Cause: err}
	}
	if len(history) == 0 && r.opts.SystemPrompt != "" {
		history = append(history, models.NewUserMessage(r.opts.SystemPrompt).WithMetadata(models.MessageMetadata{Protected: true}))
	}
	if req.UserMessage != "" {
		userMsg := models.NewUserMessage(req.UserMessage)
		history = append(history, userMsg)
		if err := r.store.Append(ctx, req.SessionID, userMsg); err != nil {
			log.Warn(ctx, "failed to persist user turn", "error", err)
		}
	}

	r.bus.Publish(models.AgentEvent{
		Type: models.EventRunStarted, SessionID: req.SessionID, RunID: req.RunID, Timestamp: time.Now().UTC(),
	})
	if r.guardian != nil {
		r.guardian.Reset()
	}

	var lastText string
	turn := 0
	for {
		turn++

		if err := ctx.Err(); err != nil {
			return r.stop(ctx, req, history, turn, lastText, "cancelled", ErrCancelled)
		}
		if turn > r.opts.MaxTurns {
			return r.stop(ctx, req, history, turn, lastText, "max_turns", ErrMaxTurnsExceeded)
		}
		if r.opts.MaxDuration > 0 && time.Since(start) > r.opts.MaxDuration {
			return r.stop(ctx, req, history, turn, lastText, "max_duration", ErrMaxDurationExceeded)
		}

		history, err = r.budgetContext(ctx, history)
		if err != nil {
			return r.stop(ctx, req, history, turn, lastText, "cancelled", err)
		}

		r.bus.Publish(models.AgentEvent{
			Type: models.EventTurnStarted, SessionID: req.SessionID, RunID: req.RunID, Timestamp: time.Now().UTC(), Turn: turn,
		})

		assistantMsg, stopReason, err := r.runOneCompletion(ctx, req, turn, history)
		if err != nil {
			r.bus.Publish(models.AgentEvent{Type: models.EventRunError, SessionID: req.SessionID, RunID: req.RunID, Timestamp: time.Now().UTC(), Err: err.Error()})
			return RunResult{FinalText: lastText, Turns: turn, StopKind: "error"}, err
		}
		history = append(history, assistantMsg)
		if err := r.store.Append(ctx, req.SessionID, assistantMsg); err != nil {
			log.Warn(ctx, "failed to persist assistant turn", "error", err)
		}
		lastText = assistantMsg.Text()

		if r.guardian != nil {
			r.guardian.ObserveTokens(agentcontext.EstimateMessageTokens(assistantMsg))

			for {
				action, ok := r.pollGuardian()
				if !ok {
					break
				}
				switch action.Kind {
				case models.GuardianHint:
					hintMsg := models.NewUserMessage(action.Text)
					history = append(history, hintMsg)
					if err := r.store.Append(ctx, req.SessionID, hintMsg); err != nil {
						log.Warn(ctx, "failed to persist guardian hint", "error", err)
					}
				case models.GuardianCancel:
					return r.stop(ctx, req, history, turn, lastText, "guardian_cancelled", fmt.Errorf("%w: guardian: %s", ErrCancelled, action.Reason))
				}
			}
		}

		calls := extractToolCalls(assistantMsg)
		if len(calls) == 0 || stopReason == "end_turn" {
			return r.complete(ctx, req, history, turn, lastText)
		}

		for _, c := range calls {
			if r.guardian != nil {
				r.guardian.ObserveToolCall(c.ToolName, c.Input)
			}
			r.bus.Publish(models.AgentEvent{
				Type: models.EventToolCallRequested, SessionID: req.SessionID, RunID: req.RunID, Timestamp: time.Now().UTC(),
				Turn: turn, ToolUseID: c.ToolUseID, ToolName: c.ToolName, ToolInput: c.Input,
			})
		}

		outcomes := runToolTurn(ctx, r.gate, req.SessionID, req.RunID, calls, r.opts.ParallelTools, r.opts.MaxToolConcurrency, r.opts.PerToolTimeout, r.opts.MaxToolOutputTokens, r.tracer, r.metrics)
		for _, o := range outcomes {
			recordToolOutcome(ctx, r.journal, req.SessionID, req.RunID, o.ToolName, string(o.Input), o.Result, o.Err)
			isErr := o.Err != nil || o.Result.IsError
			r.bus.Publish(models.AgentEvent{
				Type: models.EventToolCallResult, SessionID: req.SessionID, RunID: req.RunID, Timestamp: time.Now().UTC(),
				Turn: turn, ToolUseID: o.ToolUseID, ToolName: o.ToolName, Result: &o.Result, IsError: isErr,
			})
		}

		hint, herr := ReflexionHint(ctx, r.journal, req.SessionID, calls[0].ToolName, r.opts.ReflexionFailureThreshold)
		if herr == nil && hint != "" {
			r.bus.Publish(models.AgentEvent{Type: models.EventReflexionHint, SessionID: req.SessionID, RunID: req.RunID, Timestamp: time.Now().UTC(), Turn: turn, Hint: hint})
		}

		blocks := resultsToContentBlocks(outcomes)
		if hint != "" {
			blocks = append(blocks, models.TextBlock(hint))
		}
		toolResultMsg := models.NewToolResultMessage(blocks)
		history = append(history, toolResultMsg)
		if err := r.store.Append(ctx, req.SessionID, toolResultMsg); err != nil {
			log.Warn(ctx, "failed to persist tool result turn", "error", err)
		}

		r.saveCheckpoint(ctx, req, turn, history)
	}
}

// runOneCompletion drains one provider.Complete stream into a single
// assistant ChatMessage, publishing a StreamDelta event per fragment.
func (r *Runtime) runOneCompletion(ctx context.Context, req RunRequest, turn int, history []models.ChatMessage) (models.ChatMessage, string, error) {
	start := time.Now()
	ctx, span := r.tracer.TraceLLMRequest(ctx, r.provider.Name(), r.opts.Model, turn)
	defer span.End()
	if r.metrics != nil {
		defer func() { r.metrics.TurnDuration.Observe(time.Since(start).Seconds()) }()
	}

	creq := CompletionRequest{
		Model:     r.opts.Model,
		System:    r.opts.SystemPrompt,
		Messages:  history,
		Tools:     r.gate.Definitions(),
		MaxTokens: 4096,
	}

	stream, err := r.provider.Complete(ctx, creq)
	if err != nil {
		r.tracer.RecordError(span, err)
		return models.ChatMessage{}, "", &LLMRequestError{Provider: r.provider.Name(), Cause: err}
	}

	var blocks []models.ContentBlock
	toolInputs := map[string][]byte{}
	toolOrder := []string{}
	toolNames := map[string]string{}
	var textBuf, thinkingBuf string
	stopReason := ""

	for ev := range stream {
		if ev.Err != nil {
			r.tracer.RecordError(span, ev.Err)
			return models.ChatMessage{}, "", &LLMStreamError{Provider: r.provider.Name(), Cause: ev.Err}
		}
		r.bus.Publish(models.AgentEvent{
			Type: models.EventStreamDelta, SessionID: req.SessionID, RunID: req.RunID, Timestamp: time.Now().UTC(),
			Turn: turn, Delta: &ev.Delta,
		})

		switch ev.Delta.Kind {
		case models.DeltaText:
			textBuf += ev.Delta.Text
		case models.DeltaThinking:
			thinkingBuf += ev.Delta.Text
		case models.DeltaToolUse:
			if _, seen := toolNames[ev.Delta.ToolUseID]; !seen {
				toolOrder = append(toolOrder, ev.Delta.ToolUseID)
				toolNames[ev.Delta.ToolUseID] = ev.Delta.ToolName
			}
			toolInputs[ev.Delta.ToolUseID] = append(toolInputs[ev.Delta.ToolUseID], []byte(ev.Delta.InputDelta)...)
		case models.DeltaStopReason:
			stopReason = ev.Delta.StopReason
		}
	}

	if thinkingBuf != "" {
		blocks = append(blocks, models.ThinkingBlock(thinkingBuf))
	}
	if textBuf != "" {
		blocks = append(blocks, models.TextBlock(textBuf))
	}
	for _, id := range toolOrder {
		raw := toolInputs[id]
		var parsed json.RawMessage
		if json.Valid(raw) {
			parsed = json.RawMessage(raw)
		}
		blocks = append(blocks, models.ToolUseBlock(id, toolNames[id], parsed))
	}

	return models.ChatMessage{Role: models.RoleAssistant, Content: blocks, Timestamp: nowPtr()}, stopReason, nil
}

func (r *Runtime) budgetContext(ctx context.Context, history []models.ChatMessage) ([]models.ChatMessage, error) {
	const minTail = 4
	if agentcontext.EstimateConversationTokens(history) <= r.opts.MaxContextTokens {
		return history, nil
	}
	if r.opts.EnableSummarization && r.summarizer != nil {
		return agentcontext.SummarizeAndPrune(ctx, history, r.opts.MaxContextTokens, minTail, r.summarizer)
	}
	return agentcontext.PruneToBudget(history, r.opts.MaxContextTokens, minTail), nil
}

func (r *Runtime) pollGuardian() (models.GuardianAction, bool) {
	if r.guardian == nil {
		return models.GuardianAction{}, false
	}
	select {
	case action := <-r.guardian.Actions():
		return action, true
	default:
		return models.GuardianAction{}, false
	}
}

func (r *Runtime) saveCheckpoint(ctx context.Context, req RunRequest, turn int, history []models.ChatMessage) {
	if r.checkpoints == nil {
		return
	}
	snap := checkpoint.Snapshot{
		SessionID: req.SessionID, RunID: req.RunID, Turn: turn, Messages: history,
		InputTokens: agentcontext.EstimateConversationTokens(history),
	}
	if err := r.checkpoints.Save(ctx, snap); err != nil {
		r.log.Warn(ctx, "failed to save checkpoint", "session_id", req.SessionID, "run_id", req.RunID, "error", err)
	}
}

func (r *Runtime) complete(ctx context.Context, req RunRequest, history []models.ChatMessage, turn int, text string) (RunResult, error) {
	r.bus.Publish(models.AgentEvent{Type: models.EventRunComplete, SessionID: req.SessionID, RunID: req.RunID, Timestamp: time.Now().UTC(), Turn: turn, Message: text})
	if r.guardian != nil {
		r.guardian.Reset()
	}
	return RunResult{FinalText: text, Turns: turn, StopKind: "complete"}, nil
}

func (r *Runtime) stop(ctx context.Context, req RunRequest, history []models.ChatMessage, turn int, text, kind string, err error) (RunResult, error) {
	r.bus.Publish(models.AgentEvent{Type: models.EventRunError, SessionID: req.SessionID, RunID: req.RunID, Timestamp: time.Now().UTC(), Turn: turn, Err: err.Error()})
	if r.guardian != nil {
		r.guardian.Reset()
	}
	return RunResult{FinalText: text, Turns: turn, StopKind: kind}, err
}

// extractToolCalls pulls the ToolUse blocks out of an assistant message in
// order.
func extractToolCalls(m models.ChatMessage) []ToolCall {
	var calls []ToolCall
	for _, b := range m.Content {
		if b.Type == models.ContentToolUse {
			calls = append(calls, ToolCall{ToolUseID: b.ID, ToolName: b.Name, Input: b.Input})
		}
	}
	return calls
}

func nowPtr() *time.Time {
	t := time.Now().UTC()
	return &t
}
