package gitrepo

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/randalmurphal/orc/internal/attemperr"
)

// Manager provisions and manipulates per-attempt git worktrees rooted
// under a single configured repository and worktree root directory.
//
// All operations on a given attempt id are serialized by an advisory
// per-attempt lock; operations on different attempts run concurrently
// (§5 Concurrency & Resource Model) as long as they only ever mutate
// their own worktree. Merge is the one operation that must check a
// branch out in the shared main repository clone, so it additionally
// takes repoMu — a single repo-wide lock — for the duration of that
// checkout/merge/checkout-back sequence, serializing it against every
// other attempt's Merge regardless of attempt id.
type Manager struct {
	repoPath    string // path to the main repository clone
	worktreeDir string // root directory under which worktrees are created

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	repoMu sync.Mutex // guards operations that check out a branch in repoPath itself
}

// NewManager returns a Manager for the repository at repoPath, creating
// worktrees under worktreeDir.
func NewManager(repoPath, worktreeDir string) *Manager {
	return &Manager{
		repoPath:    repoPath,
		worktreeDir: worktreeDir,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(attemptID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[attemptID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[attemptID] = l
	}
	return l
}

// WorktreePath returns the deterministic path for an attempt's worktree.
func (m *Manager) WorktreePath(attemptID string) string {
	return WorktreePath(m.worktreeDir, attemptID)
}

// BranchName returns the deterministic branch name for an attempt.
func (m *Manager) BranchName(attemptID string) string {
	return BranchName(attemptID)
}

// Provision creates a branch off baseBranch and checks it out into a new
// worktree for the attempt. Tolerates a partially-provisioned path left
// over from a previous failed attempt by removing and retrying once.
func (m *Manager) Provision(ctx context.Context, attemptID, baseBranch string) (worktreePath string, err error) {
	lock := m.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	main := NewRunner(m.repoPath)

	if _, err := main.RevParse(ctx, baseBranch); err != nil {
		return "", attemperr.BaseMissing(baseBranch)
	}

	branch := BranchName(attemptID)
	path := m.WorktreePath(attemptID)

	if err := os.MkdirAll(m.worktreeDir, 0o755); err != nil {
		return "", fmt.Errorf("create worktree root: %w", err)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		// Path exists. If it's not a valid worktree, remove and retry once.
		if !isGitWorktree(path) {
			_ = os.RemoveAll(path)
		} else {
			return "", attemperr.WorktreeInUse(path)
		}
	}

	if err := m.tryProvision(ctx, main, branch, path, baseBranch); err != nil {
		// One retry after pruning stale registrations.
		_, _ = main.Run(ctx, "worktree", "prune")
		_ = os.RemoveAll(path)
		if retryErr := m.tryProvision(ctx, main, branch, path, baseBranch); retryErr != nil {
			return "", fmt.Errorf("provision worktree for %s: %w", attemptID, retryErr)
		}
	}

	return path, nil
}

func (m *Manager) tryProvision(ctx context.Context, main *Runner, branch, path, baseBranch string) error {
	if main.BranchExists(ctx, branch) {
		_, err := main.Run(ctx, "worktree", "add", path, branch)
		return err
	}
	_, err := main.Run(ctx, "worktree", "add", "-b", branch, path, baseBranch)
	return err
}

func isGitWorktree(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(path + "/.git")
	return err == nil
}

// Restore rematerializes a worktree whose directory is missing on disk
// but whose branch still exists. Returns attemperr.Irrecoverable if the
// branch is also gone — the caller (Coordinator) escalates to forking a
// new attempt.
func (m *Manager) Restore(ctx context.Context, attemptID string) (worktreePath string, err error) {
	lock := m.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	path := m.WorktreePath(attemptID)
	if isGitWorktree(path) {
		return path, nil
	}

	main := NewRunner(m.repoPath)
	branch := BranchName(attemptID)
	if !main.BranchExists(ctx, branch) {
		return "", attemperr.Irrecoverable(attemptID, fmt.Errorf("branch %s does not exist", branch))
	}

	_, _ = main.Run(ctx, "worktree", "prune")
	if _, err := main.Run(ctx, "worktree", "add", path, branch); err != nil {
		return "", attemperr.Irrecoverable(attemptID, err)
	}
	return path, nil
}

// Exists reports whether the worktree directory is present on disk.
func (m *Manager) Exists(attemptID string) bool {
	return isGitWorktree(m.WorktreePath(attemptID))
}

// Delete removes the attempt's worktree and prunes git's registration.
func (m *Manager) Delete(ctx context.Context, attemptID string) error {
	lock := m.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	path := m.WorktreePath(attemptID)
	main := NewRunner(m.repoPath)
	_, _ = main.Run(ctx, "worktree", "remove", "--force", path)
	_ = os.RemoveAll(path)
	_, err := main.Run(ctx, "worktree", "prune")
	return err
}
