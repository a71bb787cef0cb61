package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateSession inserts the sidecar ExecutorSession for a process.
func (d *DB) CreateSession(ctx context.Context, s *ExecutorSession) error {
	s.CreatedAt = time.Now().UTC()
	_, err := d.drv.Exec(ctx, `
		INSERT INTO executor_session (id, process_id, prompt, summary, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.ProcessID, s.Prompt, nullIfEmpty(s.Summary), nullIfEmpty(s.SessionID), s.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindSessionByProcess retrieves the sidecar session for a process, or
// nil if none was created.
func (d *DB) FindSessionByProcess(ctx context.Context, processID string) (*ExecutorSession, error) {
	row := d.drv.QueryRow(ctx, `
		SELECT id, process_id, prompt, summary, session_id, created_at
		FROM executor_session WHERE process_id = ?
	`, processID)

	var s ExecutorSession
	var summary, sessionID sql.NullString
	var createdAt string
	if err := row.Scan(&s.ID, &s.ProcessID, &s.Prompt, &summary, &sessionID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find session by process %s: %w", processID, err)
	}
	if summary.Valid {
		s.Summary = summary.String
	}
	if sessionID.Valid {
		s.SessionID = sessionID.String
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &s, nil
}

// UpdateSessionSummary sets the agent-reported summary, the only mutable
// field on an otherwise-immutable session (§3 ExecutorSession lifecycle).
func (d *DB) UpdateSessionSummary(ctx context.Context, processID, summary string) error {
	_, err := d.drv.Exec(ctx, `UPDATE executor_session SET summary = ? WHERE process_id = ?`, summary, processID)
	if err != nil {
		return fmt.Errorf("update session summary %s: %w", processID, err)
	}
	return nil
}
