package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors for loop-bound outcomes that carry no extra context,
// following the teacher's errors.go convention of plain sentinels for the
// common cases and structured types below for parameterized ones.
var (
	ErrCancelled          = errors.New("agent: run cancelled")
	ErrMaxTurnsExceeded   = errors.New("agent: max turns exceeded")
	ErrMaxDurationExceeded = errors.New("agent: max duration exceeded")
)

// ToolExecutionError wraps a failure that occurred while running a tool
// the gate had already allowed (the gate's own errors — not found,
// blocked, denied, timed out — are distinct types in internal/security).
type ToolExecutionError struct {
	ToolName string
	Cause    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("agent: tool %q failed: %v", e.ToolName, e.Cause)
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

// ToolValidationError reports that the LLM's tool call arguments did not
// parse as JSON or did not match the tool's schema.
type ToolValidationError struct {
	ToolName string
	Cause    error
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("agent: tool %q received invalid input: %v", e.ToolName, e.Cause)
}

func (e *ToolValidationError) Unwrap() error { return e.Cause }

// LLMRequestError wraps a failure to even start a completion request.
type LLMRequestError struct {
	Provider string
	Cause    error
}

func (e *LLMRequestError) Error() string {
	return fmt.Sprintf("agent: %s request failed: %v", e.Provider, e.Cause)
}

func (e *LLMRequestError) Unwrap() error { return e.Cause }

// LLMStreamError wraps a failure that occurred mid-stream, after the
// request was accepted.
type LLMStreamError struct {
	Provider string
	Cause    error
}

func (e *LLMStreamError) Error() string {
	return fmt.Sprintf("agent: %s stream failed: %v", e.Provider, e.Cause)
}

func (e *LLMStreamError) Unwrap() error { return e.Cause }

// DatabaseError wraps a failure from the session store, journal, or
// checkpoint store.
type DatabaseError struct {
	Op    string
	Cause error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("agent: database op %q failed: %v", e.Op, e.Cause)
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

// ConfigError reports an invalid runtime configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("agent: invalid config field %q: %s", e.Field, e.Reason)
}
