package supervisor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/randalmurphal/orc/internal/executor"
	"github.com/randalmurphal/orc/internal/store"
	"github.com/randalmurphal/orc/internal/store/driver"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(context.Background(), driver.DialectSQLite, dir+"/attempts.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedAttempt(t *testing.T, db *store.DB) *store.Attempt {
	t.Helper()
	ctx := context.Background()
	task := &store.Task{ID: "task-1", ProjectID: "proj-1", Title: "do the thing"}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	a := &store.Attempt{
		ID: "attempt-1", TaskID: "task-1", ProjectID: "proj-1", Executor: "default",
		BaseBranch: "main", WorktreePath: t.TempDir(), BranchName: "attempt/attempt-1",
	}
	if err := db.CreateAttempt(ctx, a); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	return a
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForStatus(t *testing.T, db *store.DB, processID, want string) *store.ExecutionProcess {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p, err := db.FindProcess(context.Background(), processID)
		if err != nil {
			t.Fatalf("FindProcess: %v", err)
		}
		if p != nil && p.Status == want {
			return p
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("process %s did not reach status %s in time", processID, want)
	return nil
}

func TestSpawnRecordsSuccessfulCompletion(t *testing.T) {
	db := newTestDB(t)
	a := seedAttempt(t, db)
	sup := New(db, quietLogger())

	p := &store.ExecutionProcess{ID: "proc-1", AttemptID: a.ID, ProjectID: a.ProjectID, ProcessType: store.ProcessTypeSetupScript}
	spec := executor.CommandSpec{Path: "/bin/sh", Args: []string{"-c", "echo hello; echo oops 1>&2; exit 0"}, Dir: a.WorktreePath}

	if err := sup.Spawn(context.Background(), p, spec); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	done := waitForStatus(t, db, "proc-1", store.ProcessStatusCompleted)
	if done.ExitCode == nil || *done.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %+v", done.ExitCode)
	}
	if done.Stdout == "" {
		t.Errorf("expected stdout to be captured")
	}
	if done.Stderr == "" {
		t.Errorf("expected stderr to be captured")
	}
}

func TestSpawnRecordsNonZeroExitAsFailed(t *testing.T) {
	db := newTestDB(t)
	a := seedAttempt(t, db)
	sup := New(db, quietLogger())

	p := &store.ExecutionProcess{ID: "proc-2", AttemptID: a.ID, ProjectID: a.ProjectID, ProcessType: store.ProcessTypeSetupScript}
	spec := executor.CommandSpec{Path: "/bin/sh", Args: []string{"-c", "exit 3"}, Dir: a.WorktreePath}

	if err := sup.Spawn(context.Background(), p, spec); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	done := waitForStatus(t, db, "proc-2", store.ProcessStatusFailed)
	if done.ExitCode == nil || *done.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %+v", done.ExitCode)
	}
}

func TestKillTerminatesLongRunningProcess(t *testing.T) {
	db := newTestDB(t)
	a := seedAttempt(t, db)
	sup := New(db, quietLogger())

	p := &store.ExecutionProcess{ID: "proc-3", AttemptID: a.ID, ProjectID: a.ProjectID, ProcessType: store.ProcessTypeDevServer}
	spec := executor.CommandSpec{Path: "/bin/sh", Args: []string{"-c", "trap '' TERM; sleep 30"}, Dir: a.WorktreePath}

	if err := sup.Spawn(context.Background(), p, spec); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	// Give the process time to install its trap before killing it.
	time.Sleep(100 * time.Millisecond)

	found, err := sup.Kill("proc-3")
	if err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if !found {
		t.Fatal("expected Kill to find the live handle")
	}

	done := waitForStatus(t, db, "proc-3", store.ProcessStatusKilled)
	if done.ExitCode == nil {
		t.Fatalf("expected a recorded exit code after kill")
	}
}

func TestKillOnUnknownProcessIsANoop(t *testing.T) {
	db := newTestDB(t)
	sup := New(db, quietLogger())

	found, err := sup.Kill("does-not-exist")
	if err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if found {
		t.Fatal("expected Kill to report false for an unregistered process id")
	}
}

func TestReconcileOrphansFailsRunningRowsWithNoLiveHandle(t *testing.T) {
	db := newTestDB(t)
	a := seedAttempt(t, db)
	sup := New(db, quietLogger())
	ctx := context.Background()

	orphan := &store.ExecutionProcess{ID: "proc-orphan", AttemptID: a.ID, ProjectID: a.ProjectID, ProcessType: store.ProcessTypeCodingAgent}
	if err := db.CreateProcess(ctx, orphan); err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}

	if err := sup.ReconcileOrphans(ctx); err != nil {
		t.Fatalf("ReconcileOrphans: %v", err)
	}

	reconciled, err := db.FindProcess(ctx, "proc-orphan")
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	if reconciled.Status != store.ProcessStatusFailed {
		t.Fatalf("expected orphaned row to be Failed, got %s", reconciled.Status)
	}
	if reconciled.Stderr == "" {
		t.Errorf("expected a synthetic restart note in stderr")
	}
}
