package security

import (
	"errors"
	"fmt"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Sentinel errors for gate-level outcomes that carry no extra context.
var (
	// ErrApprovalTimedOut indicates the approval broker's wait expired
	// before a human decision arrived.
	ErrApprovalTimedOut = errors.New("security: approval timed out")
)

// ToolNotFoundError reports that the requested tool is not registered.
type ToolNotFoundError struct {
	ToolName string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("security: tool %q not found", e.ToolName)
}

// ToolBlockedError reports that policy denied the tool call outright.
type ToolBlockedError struct {
	ToolName string
	Reason   string
}

func (e *ToolBlockedError) Error() string {
	return fmt.Sprintf("security: tool %q blocked: %s", e.ToolName, e.Reason)
}

// ApprovalDeniedError reports that a human explicitly denied the request.
type ApprovalDeniedError struct {
	ToolName  string
	RequestID string
	Note      string
}

func (e *ApprovalDeniedError) Error() string {
	if e.Note != "" {
		return fmt.Sprintf("security: approval for %q denied: %s", e.ToolName, e.Note)
	}
	return fmt.Sprintf("security: approval for %q denied", e.ToolName)
}

// ApprovalTimeoutError reports that no decision arrived within the
// configured window. Wraps ErrApprovalTimedOut so callers can match with
// errors.Is regardless of the tool name involved.
type ApprovalTimeoutError struct {
	ToolName  string
	RequestID string
}

func (e *ApprovalTimeoutError) Error() string {
	return fmt.Sprintf("security: approval for %q (request %s) timed out", e.ToolName, e.RequestID)
}

func (e *ApprovalTimeoutError) Unwrap() error { return ErrApprovalTimedOut }

// ToolTimeoutError reports that an approved tool call exceeded its
// execution deadline.
type ToolTimeoutError struct {
	ToolName string
	Cause    error
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("security: tool %q timed out: %v", e.ToolName, e.Cause)
}

func (e *ToolTimeoutError) Unwrap() error { return e.Cause }

// IsBlocked reports whether err represents a policy-level block (a
// ToolBlockedError, such as a DenyAbove tier denial or rejected input, or
// a denied approval), as opposed to a timeout or infrastructure failure.
func IsBlocked(err error) bool {
	var blocked *ToolBlockedError
	var denied *ApprovalDeniedError
	return errors.As(err, &blocked) || errors.As(err, &denied)
}

// TierOf is a convenience wrapper used by callers that only have an error
// and want to know which tier, if any, produced it.
func TierOf(err error) (models.SecurityTier, bool) {
	var blocked *ToolBlockedError
	if errors.As(err, &blocked) {
		return models.TierT4, true
	}
	return 0, false
}
