package models

import (
	"encoding/json"
	"time"
)

// AgentEventType discriminates the variants of AgentEvent.
type AgentEventType string

const (
	EventRunStarted          AgentEventType = "run_started"
	EventTurnStarted         AgentEventType = "turn_started"
	EventStreamDelta         AgentEventType = "stream_delta"
	EventToolCallRequested   AgentEventType = "tool_call_requested"
	EventApprovalRequested   AgentEventType = "approval_requested"
	EventApprovalResolved    AgentEventType = "approval_resolved"
	EventToolCallResult      AgentEventType = "tool_call_result"
	EventToolBlocked         AgentEventType = "tool_blocked"
	EventReflexionHint       AgentEventType = "reflexion_hint"
	EventGuardianStall       AgentEventType = "guardian_stall"
	EventGuardianDoomLoop    AgentEventType = "guardian_doom_loop"
	EventGuardianBudgetAlert AgentEventType = "guardian_budget_alert"
	EventGuardianHint        AgentEventType = "guardian_hint"
	EventRunComplete         AgentEventType = "run_complete"
	EventRunError            AgentEventType = "run_error"
)

// StreamDeltaKind discriminates the incremental pieces of an assistant turn.
type StreamDeltaKind string

const (
	DeltaText        StreamDeltaKind = "text"
	DeltaThinking    StreamDeltaKind = "thinking"
	DeltaToolUse     StreamDeltaKind = "tool_use"
	DeltaStopReason  StreamDeltaKind = "stop_reason"
)

// StreamDelta is one incremental fragment of a streamed assistant turn.
type StreamDelta struct {
	Kind       StreamDeltaKind `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolUseID  string          `json:"tool_use_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	InputDelta string          `json:"input_delta,omitempty"`
	StopReason string          `json:"stop_reason,omitempty"`
}

// AgentEvent is the single tagged-union type published on the event bus.
// Exactly the fields relevant to Type are populated; this mirrors the
// ContentBlock convention above rather than the teacher's pointer-payload
// style, since every field here is small and copy-cheap.
type AgentEvent struct {
	Type      AgentEventType `json:"type"`
	SessionID string         `json:"session_id"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"ts"`

	Turn int `json:"turn,omitempty"`

	Delta *StreamDelta `json:"delta,omitempty"`

	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	ToolTier  SecurityTier    `json:"tool_tier,omitempty"`

	Approval *ApprovalRequest `json:"approval,omitempty"`
	Decision ApprovalDecision `json:"decision,omitempty"`

	Result  *ToolResult `json:"result,omitempty"`
	IsError bool        `json:"is_error,omitempty"`

	Hint string `json:"hint,omitempty"`

	// ConsecutiveCalls, TokensUsed, TokensBudget, IsHardStop, and
	// ElapsedSecs carry the field-specific payload of the GuardianDoomLoop,
	// GuardianBudgetAlert, and GuardianStall variants respectively.
	ConsecutiveCalls int     `json:"consecutive_calls,omitempty"`
	TokensUsed       int     `json:"tokens_used,omitempty"`
	TokensBudget     int     `json:"tokens_budget,omitempty"`
	IsHardStop       bool    `json:"is_hard_stop,omitempty"`
	ElapsedSecs      float64 `json:"elapsed_secs,omitempty"`

	Message string `json:"message,omitempty"`
	Err     string `json:"error,omitempty"`
}

// GuardianActionKind discriminates the one-way signals the Guardian sends
// back to the Runtime.
type GuardianActionKind string

const (
	// GuardianHint carries a corrective nudge that the runtime appends to
	// the conversation as a user-role message.
	GuardianHint GuardianActionKind = "hint"
	// GuardianCancel stops the run: the runtime drains it after the current
	// completion and returns an error wrapping agent.ErrCancelled with
	// Reason attached.
	GuardianCancel GuardianActionKind = "cancel"
)

// GuardianAction is the payload the Guardian sends on its one-way channel
// to the Runtime. The Runtime never calls back into the Guardian.
type GuardianAction struct {
	Kind GuardianActionKind
	// Text is the advice to inject when Kind is GuardianHint.
	Text string
	// Reason explains the cancellation when Kind is GuardianCancel.
	Reason string
}

// FailureRecord is one row of the failure journal: a tool call that failed,
// recorded so the reflexion hint generator and future runs can learn from
// repeated failures.
type FailureRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	RunID     string    `json:"run_id"`
	ToolName  string    `json:"tool_name"`
	ToolInput string    `json:"tool_input"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// SuccessRecord is one row of the success journal, used to distinguish a
// tool that is failing from a tool that has never been tried.
type SuccessRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	RunID     string    `json:"run_id"`
	ToolName  string    `json:"tool_name"`
	CreatedAt time.Time `json:"created_at"`
}
