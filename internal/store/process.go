package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const processColumns = `id, attempt_id, project_id, process_type, executor_type, command, working_directory, status, exit_code, pgid, started_at, ended_at, stdout, stderr`

// CreateProcess inserts a new ExecutionProcess row in Running status.
func (d *DB) CreateProcess(ctx context.Context, p *ExecutionProcess) error {
	if p.Status == "" {
		p.Status = ProcessStatusRunning
	}
	p.StartedAt = time.Now().UTC()
	_, err := d.drv.Exec(ctx, `
		INSERT INTO execution_process (id, attempt_id, project_id, process_type, executor_type, command, working_directory, status, exit_code, pgid, started_at, ended_at, stdout, stderr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.AttemptID, p.ProjectID, p.ProcessType, nullIfEmpty(p.ExecutorType), p.Command, p.WorkingDirectory,
		p.Status, nil, nullIfZero(p.PGID), p.StartedAt.Format(time.RFC3339), nil, p.Stdout, p.Stderr)
	if err != nil {
		return fmt.Errorf("create process: %w", err)
	}
	return nil
}

// FindProcess retrieves a process by id, or nil if it does not exist.
func (d *DB) FindProcess(ctx context.Context, id string) (*ExecutionProcess, error) {
	row := d.drv.QueryRow(ctx, `SELECT `+processColumns+` FROM execution_process WHERE id = ?`, id)
	p, err := scanProcess(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find process %s: %w", id, err)
	}
	return p, nil
}

// FindProcessesByAttempt lists an attempt's processes in stable creation order.
func (d *DB) FindProcessesByAttempt(ctx context.Context, attemptID string) ([]ExecutionProcess, error) {
	rows, err := d.drv.Query(ctx, `SELECT `+processColumns+` FROM execution_process WHERE attempt_id = ? ORDER BY started_at ASC, id ASC`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("find processes by attempt %s: %w", attemptID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []ExecutionProcess
	for rows.Next() {
		p, err := scanProcessRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FindProcessSummaries is the lightweight listing projection (omits
// stdout/stderr bodies) consumed by get_processes.
func (d *DB) FindProcessSummaries(ctx context.Context, attemptID string) ([]ProcessSummary, error) {
	rows, err := d.drv.Query(ctx, `
		SELECT id, process_type, status, started_at, ended_at
		FROM execution_process WHERE attempt_id = ? ORDER BY started_at ASC, id ASC
	`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("find process summaries %s: %w", attemptID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []ProcessSummary
	for rows.Next() {
		var s ProcessSummary
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.ProcessType, &s.Status, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan process summary: %w", err)
		}
		s.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if endedAt.Valid {
			t, _ := time.Parse(time.RFC3339, endedAt.String)
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindRunningDevServersByProject returns all Running DevServer processes
// for a project (§6 dev-server singleton index, `(project_id, status)`).
func (d *DB) FindRunningDevServersByProject(ctx context.Context, projectID string) ([]ExecutionProcess, error) {
	rows, err := d.drv.Query(ctx, `SELECT `+processColumns+` FROM execution_process
		WHERE project_id = ? AND process_type = ? AND status = ?
		ORDER BY started_at ASC, id ASC
	`, projectID, ProcessTypeDevServer, ProcessStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("find running dev servers for project %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []ExecutionProcess
	for rows.Next() {
		p, err := scanProcessRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FindRunningProcesses returns every process currently marked Running,
// used at startup for orphan reconciliation (§4.4 recovery).
func (d *DB) FindRunningProcesses(ctx context.Context) ([]ExecutionProcess, error) {
	rows, err := d.drv.Query(ctx, `SELECT `+processColumns+` FROM execution_process WHERE status = ? ORDER BY started_at ASC, id ASC`, ProcessStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("find running processes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ExecutionProcess
	for rows.Next() {
		p, err := scanProcessRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// AppendStdout appends a verbatim chunk of stdout to a process's persisted
// stream (§4.4: adapters parse JSONL themselves, so no boundary marker).
func (d *DB) AppendStdout(ctx context.Context, id, chunk string) error {
	_, err := d.drv.Exec(ctx, `UPDATE execution_process SET stdout = stdout || ? WHERE id = ?`, chunk, id)
	if err != nil {
		return fmt.Errorf("append stdout %s: %w", id, err)
	}
	return nil
}

// AppendStderr appends a chunk of stderr, inserting StderrChunkBoundary
// before it unless the stream is currently empty (§3, §6 stderr framing).
func (d *DB) AppendStderr(ctx context.Context, id, chunk string) error {
	row := d.drv.QueryRow(ctx, `SELECT stderr FROM execution_process WHERE id = ?`, id)
	var existing string
	if err := row.Scan(&existing); err != nil {
		return fmt.Errorf("read stderr %s: %w", id, err)
	}
	framed := chunk
	if existing != "" {
		framed = StderrChunkBoundary + chunk
	}
	_, err := d.drv.Exec(ctx, `UPDATE execution_process SET stderr = stderr || ? WHERE id = ?`, framed, id)
	if err != nil {
		return fmt.Errorf("append stderr %s: %w", id, err)
	}
	return nil
}

// SetPGID records the spawned process group id for kill-handle bookkeeping.
func (d *DB) SetPGID(ctx context.Context, id string, pgid int) error {
	_, err := d.drv.Exec(ctx, `UPDATE execution_process SET pgid = ? WHERE id = ?`, pgid, id)
	if err != nil {
		return fmt.Errorf("set pgid %s: %w", id, err)
	}
	return nil
}

// UpdateCompletion transitions a process to a terminal status exactly
// once. If the process is already terminal, it is a silent no-op that
// returns the prior (unmodified) status (§4.1, §8 invariant 1).
func (d *DB) UpdateCompletion(ctx context.Context, id, status string, exitCode *int) (priorStatus string, err error) {
	tx, err := d.drv.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin update_completion %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRow(ctx, `SELECT status FROM execution_process WHERE id = ?`, id)
	if err := row.Scan(&priorStatus); err != nil {
		return "", fmt.Errorf("read process status %s: %w", id, err)
	}

	if isTerminalStatus(priorStatus) {
		return priorStatus, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(ctx, `UPDATE execution_process SET status = ?, exit_code = ?, ended_at = ? WHERE id = ?`,
		status, exitCode, now, id); err != nil {
		return "", fmt.Errorf("update_completion %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit update_completion %s: %w", id, err)
	}
	return priorStatus, nil
}

func isTerminalStatus(status string) bool {
	switch status {
	case ProcessStatusCompleted, ProcessStatusFailed, ProcessStatusKilled:
		return true
	default:
		return false
	}
}

func scanProcess(row *sql.Row) (*ExecutionProcess, error) {
	var p ExecutionProcess
	var executorType sql.NullString
	var exitCode sql.NullInt64
	var pgid sql.NullInt64
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(&p.ID, &p.AttemptID, &p.ProjectID, &p.ProcessType, &executorType, &p.Command, &p.WorkingDirectory,
		&p.Status, &exitCode, &pgid, &startedAt, &endedAt, &p.Stdout, &p.Stderr); err != nil {
		return nil, err
	}
	applyProcessNullables(&p, executorType, exitCode, pgid, startedAt, endedAt)
	return &p, nil
}

func scanProcessRows(rows *sql.Rows) (*ExecutionProcess, error) {
	var p ExecutionProcess
	var executorType sql.NullString
	var exitCode sql.NullInt64
	var pgid sql.NullInt64
	var startedAt string
	var endedAt sql.NullString
	if err := rows.Scan(&p.ID, &p.AttemptID, &p.ProjectID, &p.ProcessType, &executorType, &p.Command, &p.WorkingDirectory,
		&p.Status, &exitCode, &pgid, &startedAt, &endedAt, &p.Stdout, &p.Stderr); err != nil {
		return nil, err
	}
	applyProcessNullables(&p, executorType, exitCode, pgid, startedAt, endedAt)
	return &p, nil
}

func applyProcessNullables(p *ExecutionProcess, executorType sql.NullString, exitCode, pgid sql.NullInt64, startedAt string, endedAt sql.NullString) {
	if executorType.Valid {
		p.ExecutorType = executorType.String
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		p.ExitCode = &v
	}
	if pgid.Valid {
		p.PGID = int(pgid.Int64)
	}
	p.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if endedAt.Valid {
		t, _ := time.Parse(time.RFC3339, endedAt.String)
		p.EndedAt = &t
	}
}
