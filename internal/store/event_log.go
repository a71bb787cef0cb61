package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveEvents batch-inserts event log rows. It is used by the Event Bus's
// PersistentPublisher to flush its buffer in a single round trip.
func (d *DB) SaveEvents(ctx context.Context, events []*EventLog) error {
	for _, e := range events {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		_, err := d.drv.Exec(ctx, `
			INSERT INTO event_log (id, attempt_id, process_id, event_type, data, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.AttemptID, nullIfEmpty(e.ProcessID), e.EventType, e.Data, e.Source, e.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("save event %s: %w", e.ID, err)
		}
	}
	return nil
}

// FindEventsByAttempt retrieves an attempt's persisted events in creation
// order, for replay/audit when a subscriber was not live to receive them.
func (d *DB) FindEventsByAttempt(ctx context.Context, attemptID string) ([]EventLog, error) {
	rows, err := d.drv.Query(ctx, `
		SELECT id, attempt_id, process_id, event_type, data, source, created_at
		FROM event_log WHERE attempt_id = ? ORDER BY created_at ASC, id ASC
	`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("find events by attempt %s: %w", attemptID, err)
	}
	defer rows.Close()

	var out []EventLog
	for rows.Next() {
		var e EventLog
		var processID sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.AttemptID, &processID, &e.EventType, &e.Data, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if processID.Valid {
			e.ProcessID = processID.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
