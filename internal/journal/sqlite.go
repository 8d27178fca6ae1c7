package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS failure_journal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	tool_input TEXT NOT NULL,
	error TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failure_journal_session_tool
	ON failure_journal(session_id, tool_name, id);

CREATE TABLE IF NOT EXISTS success_journal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_success_journal_session_tool
	ON success_journal(session_id, tool_name, id);
`

// SQLite is a Journal backed by a modernc.org/sqlite (pure Go, no cgo)
// database, matching healing.rs's two-table (failure_journal,
// success_journal) schema.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the journal database at dsn and
// runs WAL mode plus the schema migration.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", dsn, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: enabling WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrating schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) RecordFailure(ctx context.Context, rec models.FailureRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failure_journal (session_id, run_id, tool_name, tool_input, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.RunID, rec.ToolName, rec.ToolInput, rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("journal: recording failure: %w", err)
	}
	return nil
}

func (s *SQLite) RecordSuccess(ctx context.Context, rec models.SuccessRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO success_journal (session_id, run_id, tool_name, created_at) VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.RunID, rec.ToolName, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("journal: recording success: %w", err)
	}
	return nil
}

func (s *SQLite) RecentFailures(ctx context.Context, sessionID, toolName string, limit int) ([]models.FailureRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, run_id, tool_name, tool_input, error, created_at
		 FROM failure_journal WHERE session_id = ? AND tool_name = ?
		 ORDER BY id DESC LIMIT ?`, sessionID, toolName, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: querying recent failures: %w", err)
	}
	defer rows.Close()

	var out []models.FailureRecord
	for rows.Next() {
		var rec models.FailureRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.RunID, &rec.ToolName, &rec.ToolInput, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scanning failure row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FailureStreak counts failures for (sessionID, toolName) since the most
// recent success, by comparing the latest row IDs of each table: every
// failure row whose ID is greater than the latest success row's ID (or
// all failures, if there is no recorded success) counts toward the streak.
func (s *SQLite) FailureStreak(ctx context.Context, sessionID, toolName string) (int, error) {
	var lastSuccessID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(id) FROM success_journal WHERE session_id = ? AND tool_name = ?`,
		sessionID, toolName).Scan(&lastSuccessID)
	if err != nil {
		return 0, fmt.Errorf("journal: finding last success: %w", err)
	}

	var count int
	if lastSuccessID.Valid {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM failure_journal WHERE session_id = ? AND tool_name = ? AND id > (
				SELECT MAX(id) FROM success_journal WHERE session_id = ? AND tool_name = ?
			)`, sessionID, toolName, sessionID, toolName).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM failure_journal WHERE session_id = ? AND tool_name = ?`,
			sessionID, toolName).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("journal: counting failure streak: %w", err)
	}
	return count, nil
}
