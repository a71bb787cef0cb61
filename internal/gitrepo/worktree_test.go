package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")
	return dir
}

func TestProvisionCreatesWorktreeAndBranch(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()
	m := NewManager(repo, root)
	ctx := context.Background()

	path, err := m.Provision(ctx, "attempt-1", "main")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !m.Exists("attempt-1") {
		t.Fatalf("expected worktree to exist at %s", path)
	}

	r := NewRunner(path)
	branch, err := r.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if want := BranchName("attempt-1"); branch != want {
		t.Errorf("branch = %q, want %q", branch, want)
	}
}

func TestProvisionBaseMissing(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()
	m := NewManager(repo, root)

	_, err := m.Provision(context.Background(), "attempt-1", "does-not-exist")
	if err == nil {
		t.Fatal("expected error for missing base branch")
	}
}

func TestProvisionWorktreeInUse(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()
	m := NewManager(repo, root)
	ctx := context.Background()

	if _, err := m.Provision(ctx, "attempt-1", "main"); err != nil {
		t.Fatalf("first Provision: %v", err)
	}
	if _, err := m.Provision(ctx, "attempt-1", "main"); err == nil {
		t.Fatal("expected WorktreeInUse on second Provision of same attempt")
	}
}

func TestDeleteRemovesWorktree(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()
	m := NewManager(repo, root)
	ctx := context.Background()

	if _, err := m.Provision(ctx, "attempt-1", "main"); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := m.Delete(ctx, "attempt-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Exists("attempt-1") {
		t.Fatal("expected worktree to be gone after Delete")
	}
}

func TestBranchStatusUpToDate(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()
	m := NewManager(repo, root)
	ctx := context.Background()

	if _, err := m.Provision(ctx, "attempt-1", "main"); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	status, err := m.BranchStatus(ctx, "attempt-1", "main")
	if err != nil {
		t.Fatalf("BranchStatus: %v", err)
	}
	if !status.UpToDate {
		t.Errorf("expected up to date immediately after provisioning, got %+v", status)
	}
}

func TestDiffReportsAddedFile(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()
	m := NewManager(repo, root)
	ctx := context.Background()

	path, err := m.Provision(ctx, "attempt-1", "main")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if err := os.WriteFile(filepath.Join(path, "new.txt"), []byte("new content\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRunner(path)
	if _, err := r.Run(ctx, "add", "."); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(ctx, "commit", "-m", "add new.txt"); err != nil {
		t.Fatal(err)
	}

	diff, err := m.Diff(ctx, "attempt-1", "main")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.Files) != 1 || diff.Files[0].Path != "new.txt" || diff.Files[0].Status != "added" {
		t.Errorf("unexpected diff result: %+v", diff.Files)
	}
}

func TestMergeFastForward(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()
	m := NewManager(repo, root)
	ctx := context.Background()

	path, err := m.Provision(ctx, "attempt-1", "main")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	r := NewRunner(path)
	if err := os.WriteFile(filepath.Join(path, "feature.txt"), []byte("feature\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(ctx, "add", "."); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(ctx, "commit", "-m", "add feature"); err != nil {
		t.Fatal(err)
	}

	sha, err := m.Merge(ctx, "attempt-1", BranchName("attempt-1"), "main")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if sha == "" {
		t.Fatal("expected non-empty merge commit sha")
	}
}

// TestMergeConcurrentAttemptsSerialized exercises two different attempts
// of the same project calling Merge at the same time. Without repoMu
// serializing the shared repoPath checkout, this races on .git/HEAD and
// the working tree; with it, both merges land cleanly one after another.
func TestMergeConcurrentAttemptsSerialized(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()
	m := NewManager(repo, root)
	ctx := context.Background()

	attempts := []string{"attempt-1", "attempt-2"}
	for _, id := range attempts {
		path, err := m.Provision(ctx, id, "main")
		if err != nil {
			t.Fatalf("Provision(%s): %v", id, err)
		}
		r := NewRunner(path)
		name := filepath.Join(path, id+".txt")
		if err := os.WriteFile(name, []byte("content\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := r.Run(ctx, "add", "."); err != nil {
			t.Fatal(err)
		}
		if _, err := r.Run(ctx, "commit", "-m", "add file "+id); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(attempts))
	for i, id := range attempts {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = m.Merge(ctx, id, BranchName(id), "main")
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Merge(%s) returned error: %v", attempts[i], err)
		}
	}

	main := NewRunner(repo)
	for _, id := range attempts {
		if _, err := main.RevParse(ctx, "HEAD:"+id+".txt"); err != nil {
			t.Errorf("expected %s.txt to be present on main after both merges: %v", id, err)
		}
	}
}

// TestMergeConflictAbortsCleanly verifies a conflicting merge returns
// MergeConflict, aborts the in-progress merge, and leaves the shared
// repo clone back on its original branch with no lingering conflict
// state — required since Merge mutates repoPath directly.
func TestMergeConflictAbortsCleanly(t *testing.T) {
	repo := initTestRepo(t)
	root := t.TempDir()
	m := NewManager(repo, root)
	ctx := context.Background()

	path, err := m.Provision(ctx, "attempt-1", "main")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	r := NewRunner(path)
	if err := os.WriteFile(filepath.Join(path, "README.md"), []byte("attempt change\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(ctx, "add", "."); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(ctx, "commit", "-m", "attempt edits README"); err != nil {
		t.Fatal(err)
	}

	main := NewRunner(repo)
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("main change\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := main.Run(ctx, "add", "."); err != nil {
		t.Fatal(err)
	}
	if _, err := main.Run(ctx, "commit", "-m", "main diverges on README"); err != nil {
		t.Fatal(err)
	}

	_, err = m.Merge(ctx, "attempt-1", BranchName("attempt-1"), "main")
	if err == nil {
		t.Fatal("expected MergeConflict, got nil")
	}

	branch, err := main.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("repo left on branch %q after failed merge, want main", branch)
	}

	if out, err := main.Run(ctx, "status", "--porcelain"); err != nil {
		t.Fatalf("status: %v", err)
	} else if out != "" {
		t.Errorf("repo has leftover changes after aborted merge: %q", out)
	}
}
