// Package checkpoint implements the optional checkpoint store (§4.10): a
// per-(session, run) snapshot of conversation state that lets a crashed
// run resume from its last completed turn instead of restarting cold.
//
// Grounded on original_source/crates/ryvos-agent/src/checkpoint.rs, backed
// by modernc.org/sqlite per the domain-stack table.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Snapshot is one saved checkpoint for a (session, run) pair.
type Snapshot struct {
	SessionID    string
	RunID        string
	Turn         int
	Messages     []models.ChatMessage
	InputTokens  int
	OutputTokens int
	SavedAt      time.Time
}

// Store is the contract the runtime calls after persisting each tool turn's
// tool-result message. A nil Store is valid; callers check for it before
// calling Save/Load so checkpointing remains fully optional.
type Store interface {
	// Save overwrites the prior checkpoint row for (session, run) with
	// the new snapshot.
	Save(ctx context.Context, snap Snapshot) error
	// Load returns the latest checkpoint for (session, run), or
	// ok == false if none exists.
	Load(ctx context.Context, sessionID, runID string) (Snapshot, bool, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	session_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	turn INTEGER NOT NULL,
	messages TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	saved_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, run_id)
);
`

// SQLite is a Store backed by modernc.org/sqlite.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the checkpoint database at dsn.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening %s: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: migrating schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Save(ctx context.Context, snap Snapshot) error {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(snap.Messages)
	if err != nil {
		return fmt.Errorf("checkpoint: marshaling messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (session_id, run_id, turn, messages, input_tokens, output_tokens, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, run_id) DO UPDATE SET
			turn=excluded.turn, messages=excluded.messages,
			input_tokens=excluded.input_tokens, output_tokens=excluded.output_tokens,
			saved_at=excluded.saved_at`,
		snap.SessionID, snap.RunID, snap.Turn, payload, snap.InputTokens, snap.OutputTokens, snap.SavedAt)
	if err != nil {
		return fmt.Errorf("checkpoint: saving: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, sessionID, runID string) (Snapshot, bool, error) {
	var snap Snapshot
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, run_id, turn, messages, input_tokens, output_tokens, saved_at
		 FROM checkpoints WHERE session_id = ? AND run_id = ?`, sessionID, runID).
		Scan(&snap.SessionID, &snap.RunID, &snap.Turn, &payload, &snap.InputTokens, &snap.OutputTokens, &snap.SavedAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("checkpoint: loading: %w", err)
	}
	if err := json.Unmarshal(payload, &snap.Messages); err != nil {
		return Snapshot{}, false, fmt.Errorf("checkpoint: unmarshaling messages: %w", err)
	}
	return snap, true, nil
}
