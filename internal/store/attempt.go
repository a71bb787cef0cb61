package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateAttempt inserts a new attempt row.
func (d *DB) CreateAttempt(ctx context.Context, a *Attempt) error {
	a.CreatedAt = time.Now().UTC()
	_, err := d.drv.Exec(ctx, `
		INSERT INTO task_attempt (id, task_id, project_id, executor, base_branch, worktree_path, branch_name, parent_attempt_id, merge_commit, pr_url, pr_number, pr_status, dev_server_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.TaskID, a.ProjectID, a.Executor, a.BaseBranch, a.WorktreePath, a.BranchName,
		nullIfEmpty(a.ParentAttemptID), nullIfEmpty(a.MergeCommit), nullIfEmpty(a.PRUrl),
		nullIfZero(a.PRNumber), nullIfEmpty(a.PRStatus), nullIfEmpty(a.DevServerURL),
		a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

const attemptColumns = `id, task_id, project_id, executor, base_branch, worktree_path, branch_name, parent_attempt_id, merge_commit, pr_url, pr_number, pr_status, dev_server_url, created_at`

// FindAttempt retrieves an attempt by id, or nil if it does not exist.
func (d *DB) FindAttempt(ctx context.Context, id string) (*Attempt, error) {
	row := d.drv.QueryRow(ctx, `SELECT `+attemptColumns+` FROM task_attempt WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attempt %s: %w", id, err)
	}
	return a, nil
}

// FindAttemptsByTask lists an task's attempts in stable creation order.
func (d *DB) FindAttemptsByTask(ctx context.Context, taskID string) ([]Attempt, error) {
	rows, err := d.drv.Query(ctx, `SELECT `+attemptColumns+` FROM task_attempt WHERE task_id = ? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("find attempts by task %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttemptRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ExistsAttemptForTask reports whether taskID has at least one attempt.
func (d *DB) ExistsAttemptForTask(ctx context.Context, taskID string) (bool, error) {
	var n int
	if err := d.drv.QueryRow(ctx, `SELECT COUNT(*) FROM task_attempt WHERE task_id = ?`, taskID).Scan(&n); err != nil {
		return false, fmt.Errorf("exists attempt for task %s: %w", taskID, err)
	}
	return n > 0, nil
}

// UpdateAttemptMerge records the merge commit once an attempt has merged.
func (d *DB) UpdateAttemptMerge(ctx context.Context, id, mergeCommit string) error {
	_, err := d.drv.Exec(ctx, `UPDATE task_attempt SET merge_commit = ? WHERE id = ?`, mergeCommit, id)
	if err != nil {
		return fmt.Errorf("update attempt merge %s: %w", id, err)
	}
	return nil
}

// UpdateAttemptBaseBranch rebinds an attempt to a new base branch
// (§4.2 Rebase with a supplied new_base).
func (d *DB) UpdateAttemptBaseBranch(ctx context.Context, id, baseBranch string) error {
	_, err := d.drv.Exec(ctx, `UPDATE task_attempt SET base_branch = ? WHERE id = ?`, baseBranch, id)
	if err != nil {
		return fmt.Errorf("update attempt base branch %s: %w", id, err)
	}
	return nil
}

// UpdateAttemptPR records pull-request tracking fields after create_pr.
func (d *DB) UpdateAttemptPR(ctx context.Context, id, url string, number int, status string) error {
	_, err := d.drv.Exec(ctx, `UPDATE task_attempt SET pr_url = ?, pr_number = ?, pr_status = ? WHERE id = ?`,
		url, number, status, id)
	if err != nil {
		return fmt.Errorf("update attempt pr %s: %w", id, err)
	}
	return nil
}

// UpdateAttemptDevServerURL records the dev server's URL once started.
func (d *DB) UpdateAttemptDevServerURL(ctx context.Context, id, url string) error {
	_, err := d.drv.Exec(ctx, `UPDATE task_attempt SET dev_server_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return fmt.Errorf("update attempt dev server url %s: %w", id, err)
	}
	return nil
}

func scanAttempt(row *sql.Row) (*Attempt, error) {
	var a Attempt
	var createdAt string
	var parentAttemptID, mergeCommit, prURL, prStatus, devServerURL sql.NullString
	var prNumber sql.NullInt64
	if err := row.Scan(&a.ID, &a.TaskID, &a.ProjectID, &a.Executor, &a.BaseBranch, &a.WorktreePath, &a.BranchName,
		&parentAttemptID, &mergeCommit, &prURL, &prNumber, &prStatus, &devServerURL, &createdAt); err != nil {
		return nil, err
	}
	applyAttemptNullables(&a, parentAttemptID, mergeCommit, prURL, prNumber, prStatus, devServerURL, createdAt)
	return &a, nil
}

func scanAttemptRows(rows *sql.Rows) (*Attempt, error) {
	var a Attempt
	var createdAt string
	var parentAttemptID, mergeCommit, prURL, prStatus, devServerURL sql.NullString
	var prNumber sql.NullInt64
	if err := rows.Scan(&a.ID, &a.TaskID, &a.ProjectID, &a.Executor, &a.BaseBranch, &a.WorktreePath, &a.BranchName,
		&parentAttemptID, &mergeCommit, &prURL, &prNumber, &prStatus, &devServerURL, &createdAt); err != nil {
		return nil, err
	}
	applyAttemptNullables(&a, parentAttemptID, mergeCommit, prURL, prNumber, prStatus, devServerURL, createdAt)
	return &a, nil
}

func applyAttemptNullables(a *Attempt, parentAttemptID, mergeCommit, prURL sql.NullString, prNumber sql.NullInt64, prStatus, devServerURL sql.NullString, createdAt string) {
	if parentAttemptID.Valid {
		a.ParentAttemptID = parentAttemptID.String
	}
	if mergeCommit.Valid {
		a.MergeCommit = mergeCommit.String
	}
	if prURL.Valid {
		a.PRUrl = prURL.String
	}
	if prNumber.Valid {
		a.PRNumber = int(prNumber.Int64)
	}
	if prStatus.Valid {
		a.PRStatus = prStatus.String
	}
	if devServerURL.Valid {
		a.DevServerURL = devServerURL.String
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
