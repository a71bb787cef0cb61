package gitrepo

import (
	"context"
	"strings"

	"github.com/randalmurphal/orc/internal/attemperr"
)

// Rebase rebases the attempt's branch onto newBase (falling back to
// baseBranch when newBase is empty). On conflict, the rebase is aborted
// and RebaseConflict is returned with no mutation to the branch.
// Returns the effective base branch used, so the caller can persist it.
func (m *Manager) Rebase(ctx context.Context, attemptID, baseBranch, newBase string) (effectiveBase string, err error) {
	lock := m.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	effectiveBase = baseBranch
	if newBase != "" {
		effectiveBase = newBase
	}

	path := m.WorktreePath(attemptID)
	if !isGitWorktree(path) {
		return "", attemptNotProvisioned(attemptID)
	}
	r := NewRunner(path)
	main := NewRunner(m.repoPath)

	if _, err := main.RevParse(ctx, effectiveBase); err != nil {
		return "", attemperr.BaseMissing(effectiveBase)
	}

	if _, err := r.Run(ctx, "rebase", effectiveBase); err != nil {
		files := conflictedFiles(ctx, r)
		_, _ = r.Run(ctx, "rebase", "--abort")
		return "", attemperr.RebaseConflict(files)
	}

	return effectiveBase, nil
}

func conflictedFiles(ctx context.Context, r *Runner) []string {
	out, err := r.Run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil || out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Merge fast-forward-merges (preferring FF) the attempt's branch into
// baseBranch within the main repository clone, and returns the resulting
// commit SHA. On conflict, the merge is aborted and MergeConflict is
// returned with no mutation.
//
// Unlike Rebase/BranchStatus/Diff, which only ever touch the attempt's
// own worktree, Merge must check baseBranch out in the shared repoPath
// clone. The per-attempt lock alone doesn't protect that: two attempts
// of the same project merging concurrently would take two different
// locks and race on the one shared .git/HEAD and working tree. repoMu
// additionally serializes the checkout/merge/checkout-back section
// against every other Merge call on this Manager.
func (m *Manager) Merge(ctx context.Context, attemptID, branchName, baseBranch string) (mergeCommit string, err error) {
	lock := m.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	m.repoMu.Lock()
	defer m.repoMu.Unlock()

	main := NewRunner(m.repoPath)

	if _, err := main.RevParse(ctx, baseBranch); err != nil {
		return "", attemperr.BaseMissing(baseBranch)
	}

	prevBranch, err := main.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		_, _ = main.Run(ctx, "checkout", prevBranch)
	}()

	if _, err := main.Run(ctx, "checkout", baseBranch); err != nil {
		return "", err
	}

	if _, err := main.Run(ctx, "merge", "--ff", branchName); err != nil {
		files := conflictedFiles(ctx, main)
		_, _ = main.Run(ctx, "merge", "--abort")
		return "", attemperr.MergeConflict(files)
	}

	sha, err := main.RevParse(ctx, "HEAD")
	if err != nil {
		return "", err
	}
	return sha, nil
}

// BranchStatus reports ahead/behind counts of the attempt's branch
// relative to baseBranch.
type BranchStatus struct {
	Ahead       int
	Behind      int
	UpToDate    bool
	Diverged    bool
	BaseMissing bool
}

// BranchStatus computes the attempt branch's position relative to
// baseBranch.
func (m *Manager) BranchStatus(ctx context.Context, attemptID, baseBranch string) (*BranchStatus, error) {
	lock := m.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	main := NewRunner(m.repoPath)
	if _, err := main.RevParse(ctx, baseBranch); err != nil {
		return &BranchStatus{BaseMissing: true}, nil
	}

	path := m.WorktreePath(attemptID)
	if !isGitWorktree(path) {
		return nil, attemptNotProvisioned(attemptID)
	}
	r := NewRunner(path)

	ahead, behind, err := r.CommitCounts(ctx, baseBranch)
	if err != nil {
		return nil, err
	}

	return &BranchStatus{
		Ahead:    ahead,
		Behind:   behind,
		UpToDate: ahead == 0 && behind == 0,
		Diverged: ahead > 0 && behind > 0,
	}, nil
}
