package store

import (
	"context"
	"testing"

	"github.com/randalmurphal/orc/internal/store/driver"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(context.Background(), driver.DialectSQLite, dir+"/attempts.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedTask(t *testing.T, db *DB, id string) *Task {
	t.Helper()
	task := &Task{ID: id, ProjectID: "proj-1", Title: "do the thing"}
	if err := db.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func TestCreateAndFindAttempt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "task-1")

	a := &Attempt{
		ID: "attempt-1", TaskID: "task-1", ProjectID: "proj-1", Executor: "default",
		BaseBranch: "main", WorktreePath: "/tmp/worktrees/attempt-1", BranchName: "attempt/attempt-1",
	}
	if err := db.CreateAttempt(ctx, a); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}

	found, err := db.FindAttempt(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("FindAttempt: %v", err)
	}
	if found == nil || found.BranchName != "attempt/attempt-1" {
		t.Fatalf("unexpected attempt: %+v", found)
	}
}

func TestFindAttemptNotFound(t *testing.T) {
	db := newTestDB(t)
	found, err := db.FindAttempt(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("FindAttempt: %v", err)
	}
	if found != nil {
		t.Fatalf("expected nil, got %+v", found)
	}
}

func TestUpdateCompletionIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "task-1")
	if err := db.CreateAttempt(ctx, &Attempt{ID: "attempt-1", TaskID: "task-1", ProjectID: "proj-1", Executor: "default", BaseBranch: "main", WorktreePath: "/tmp/w1", BranchName: "attempt/attempt-1"}); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	if err := db.CreateProcess(ctx, &ExecutionProcess{ID: "proc-1", AttemptID: "attempt-1", ProjectID: "proj-1", ProcessType: ProcessTypeCodingAgent}); err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}

	zero := 0
	prior, err := db.UpdateCompletion(ctx, "proc-1", ProcessStatusCompleted, &zero)
	if err != nil {
		t.Fatalf("first UpdateCompletion: %v", err)
	}
	if prior != ProcessStatusRunning {
		t.Errorf("prior = %q, want Running", prior)
	}

	one := 1
	prior2, err := db.UpdateCompletion(ctx, "proc-1", ProcessStatusFailed, &one)
	if err != nil {
		t.Fatalf("second UpdateCompletion: %v", err)
	}
	if prior2 != ProcessStatusCompleted {
		t.Errorf("second call should observe prior terminal status, got %q", prior2)
	}

	p, err := db.FindProcess(ctx, "proc-1")
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	if p.Status != ProcessStatusCompleted {
		t.Errorf("status should still be Completed after no-op second call, got %q", p.Status)
	}
	if p.ExitCode == nil || *p.ExitCode != 0 {
		t.Errorf("exit code should remain from first call, got %v", p.ExitCode)
	}
}

func TestAppendStderrInsertsBoundaryBetweenChunks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "task-1")
	if err := db.CreateAttempt(ctx, &Attempt{ID: "attempt-1", TaskID: "task-1", ProjectID: "proj-1", Executor: "default", BaseBranch: "main", WorktreePath: "/tmp/w1", BranchName: "attempt/attempt-1"}); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	if err := db.CreateProcess(ctx, &ExecutionProcess{ID: "proc-1", AttemptID: "attempt-1", ProjectID: "proj-1", ProcessType: ProcessTypeCodingAgent}); err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}

	if err := db.AppendStderr(ctx, "proc-1", "first chunk"); err != nil {
		t.Fatalf("AppendStderr 1: %v", err)
	}
	if err := db.AppendStderr(ctx, "proc-1", "second chunk"); err != nil {
		t.Fatalf("AppendStderr 2: %v", err)
	}

	p, err := db.FindProcess(ctx, "proc-1")
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	want := "first chunk" + StderrChunkBoundary + "second chunk"
	if p.Stderr != want {
		t.Errorf("stderr = %q, want %q", p.Stderr, want)
	}
}

func TestFindRunningDevServersByProject(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "task-1")
	if err := db.CreateAttempt(ctx, &Attempt{ID: "attempt-1", TaskID: "task-1", ProjectID: "proj-1", Executor: "default", BaseBranch: "main", WorktreePath: "/tmp/w1", BranchName: "attempt/attempt-1"}); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	if err := db.CreateProcess(ctx, &ExecutionProcess{ID: "dev-1", AttemptID: "attempt-1", ProjectID: "proj-1", ProcessType: ProcessTypeDevServer}); err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}
	if err := db.CreateProcess(ctx, &ExecutionProcess{ID: "agent-1", AttemptID: "attempt-1", ProjectID: "proj-1", ProcessType: ProcessTypeCodingAgent}); err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}

	procs, err := db.FindRunningDevServersByProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("FindRunningDevServersByProject: %v", err)
	}
	if len(procs) != 1 || procs[0].ID != "dev-1" {
		t.Errorf("unexpected dev servers: %+v", procs)
	}
}
