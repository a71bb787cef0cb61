package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateTask inserts a new task row.
func (d *DB) CreateTask(ctx context.Context, t *Task) error {
	if t.Status == "" {
		t.Status = TaskStatusTodo
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := d.drv.Exec(ctx, `
		INSERT INTO task (id, project_id, title, description, status, parent_task_attempt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ProjectID, t.Title, t.Description, t.Status, nullIfEmpty(t.ParentTaskAttempt),
		t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindTask retrieves a task by id, or nil if it does not exist.
func (d *DB) FindTask(ctx context.Context, id string) (*Task, error) {
	row := d.drv.QueryRow(ctx, `
		SELECT id, project_id, title, description, status, parent_task_attempt, created_at, updated_at
		FROM task WHERE id = ?
	`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find task %s: %w", id, err)
	}
	return t, nil
}

// FindTasksByParentAttempt lists tasks created by plan approval against
// parentAttemptID (§4.6 get_children).
func (d *DB) FindTasksByParentAttempt(ctx context.Context, parentAttemptID string) ([]Task, error) {
	rows, err := d.drv.Query(ctx, `
		SELECT id, project_id, title, description, status, parent_task_attempt, created_at, updated_at
		FROM task WHERE parent_task_attempt = ? ORDER BY created_at ASC, id ASC
	`, parentAttemptID)
	if err != nil {
		return nil, fmt.Errorf("find tasks by parent attempt %s: %w", parentAttemptID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Task
	for rows.Next() {
		var t Task
		var createdAt, updatedAt string
		var parentAttempt sql.NullString
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &parentAttempt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if parentAttempt.Valid {
			t.ParentTaskAttempt = parentAttempt.String
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ExistsTask reports whether a task with id exists.
func (d *DB) ExistsTask(ctx context.Context, id string) (bool, error) {
	var n int
	if err := d.drv.QueryRow(ctx, `SELECT COUNT(*) FROM task WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("exists task %s: %w", id, err)
	}
	return n > 0, nil
}

// UpdateTaskStatus sets a task's status.
func (d *DB) UpdateTaskStatus(ctx context.Context, id, status string) error {
	_, err := d.drv.Exec(ctx, `UPDATE task SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update task status %s: %w", id, err)
	}
	return nil
}

func scanTask(row *sql.Row) (*Task, error) {
	var t Task
	var createdAt, updatedAt string
	var parentAttempt sql.NullString
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &parentAttempt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if parentAttempt.Valid {
		t.ParentTaskAttempt = parentAttempt.String
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &t, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
