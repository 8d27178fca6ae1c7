package models

import "time"

// ApprovalDecision is the human response to an ApprovalRequest.
type ApprovalDecision string

const (
	ApprovalApproved ApprovalDecision = "approved"
	ApprovalDenied   ApprovalDecision = "denied"
)

// ApprovalRequest is published to the event bus when a tool call needs a
// human decision before it can run.
type ApprovalRequest struct {
	RequestID string       `json:"request_id"`
	SessionID string       `json:"session_id"`
	ToolName  string       `json:"tool_name"`
	ToolInput string       `json:"tool_input"`
	Tier      SecurityTier `json:"tier"`
	Reason    string       `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}

// ApprovalResponse is submitted by whatever surface collects the human's
// decision (CLI, chat command, web UI) and routed back to the Broker that
// issued the matching RequestID.
type ApprovalResponse struct {
	RequestID string           `json:"request_id"`
	Decision  ApprovalDecision `json:"decision"`
	Note      string           `json:"note,omitempty"`
}
