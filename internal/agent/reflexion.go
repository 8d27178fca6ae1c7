package agent

import (
	"context"
	"fmt"

	"github.com/Ryvos/ryvos-sub000/internal/journal"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// ReflexionHint builds a short, injectable note reminding the model that a
// tool has failed repeatedly, once the journal's failure streak for
// (sessionID, toolName) reaches threshold. Returns "" if no hint is
// warranted yet.
//
// Grounded on intelligence.rs's reflexion_hint / FailureTracker.
func ReflexionHint(ctx context.Context, j journal.Journal, sessionID, toolName string, threshold int) (string, error) {
	if j == nil || threshold <= 0 {
		return "", nil
	}

	streak, err := j.FailureStreak(ctx, sessionID, toolName)
	if err != nil {
		return "", fmt.Errorf("agent: checking failure streak: %w", err)
	}
	if streak < threshold {
		return "", nil
	}

	recent, err := j.RecentFailures(ctx, sessionID, toolName, 3)
	if err != nil {
		return "", fmt.Errorf("agent: fetching recent failures: %w", err)
	}

	hint := fmt.Sprintf("Tool %q has failed %d times in a row in this session.", toolName, streak)
	if len(recent) > 0 {
		hint += " Past failures:"
		for _, f := range recent {
			hint += fmt.Sprintf(" [%s]", f.Error)
		}
		hint += " Consider a different approach instead of repeating the same call."
	} else {
		hint += " Consider a different approach instead of repeating the same call."
	}
	return hint, nil
}

// recordToolOutcome appends one tool call's result to the journal, used by
// the loop after every tool execution so FailureStreak and RecentFailures
// stay current for the next turn's ReflexionHint check.
func recordToolOutcome(ctx context.Context, j journal.Journal, sessionID, runID, toolName, toolInput string, result models.ToolResult, execErr error) {
	if j == nil {
		return
	}
	if execErr != nil || result.IsError {
		msg := result.Content
		if execErr != nil {
			msg = execErr.Error()
		}
		_ = j.RecordFailure(ctx, models.FailureRecord{
			SessionID: sessionID, RunID: runID, ToolName: toolName,
			ToolInput: toolInput, Error: msg,
		})
		return
	}
	_ = j.RecordSuccess(ctx, models.SuccessRecord{SessionID: sessionID, RunID: runID, ToolName: toolName})
}
