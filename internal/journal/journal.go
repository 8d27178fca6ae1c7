// Package journal implements the failure journal (component C3): an
// append-only record of tool-call failures (and successes, for contrast)
// that the reflexion hint generator and future runs consult so the same
// mistake is not repeated silently forever.
//
// Grounded on original_source/crates/ryvos-agent/src/healing.rs's
// FailureJournal, which keeps two sqlite tables (failure_journal,
// success_journal) in WAL mode.
package journal

import (
	"context"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Journal is the contract the agent runtime's reflexion logic reads from
// and appends to.
type Journal interface {
	RecordFailure(ctx context.Context, rec models.FailureRecord) error
	RecordSuccess(ctx context.Context, rec models.SuccessRecord) error
	// RecentFailures returns up to limit of the most recent failures for
	// a (session, tool) pair, newest first.
	RecentFailures(ctx context.Context, sessionID, toolName string, limit int) ([]models.FailureRecord, error)
	// FailureStreak counts how many of the most recent calls to toolName
	// in this session failed consecutively (no intervening success).
	FailureStreak(ctx context.Context, sessionID, toolName string) (int, error)
}
