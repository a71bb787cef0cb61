package gitrepo

import (
	"context"
	"strings"
)

// FileDiff describes a single changed file between an attempt's base
// merge-base and its branch tip.
type FileDiff struct {
	Path     string
	Status   string // "added", "modified", "deleted", "renamed"
	OldPath  string // set when Status == "renamed"
	Binary   bool
	OldBlob  string // empty when Status == "added"
	NewBlob  string // empty when Status == "deleted"
}

// WorktreeDiff is the set of changed files between an attempt's base
// branch merge-base and the current branch tip.
type WorktreeDiff struct {
	BaseBranch string
	MergeBase  string
	Files      []FileDiff
}

// Diff computes the changed-file set between baseBranch's merge-base
// with branch and branch's current tip, with per-file content suitable
// for display. Binary files are reported but not inlined.
func (m *Manager) Diff(ctx context.Context, attemptID, baseBranch string) (*WorktreeDiff, error) {
	lock := m.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	path := m.WorktreePath(attemptID)
	if !isGitWorktree(path) {
		return nil, attemptNotProvisioned(attemptID)
	}
	r := NewRunner(path)

	mergeBase, err := r.MergeBase(ctx, baseBranch, "HEAD")
	if err != nil {
		return nil, err
	}

	out, err := r.Run(ctx, "diff", "--name-status", "-z", mergeBase, "HEAD")
	if err != nil {
		return nil, err
	}

	diff := &WorktreeDiff{BaseBranch: baseBranch, MergeBase: mergeBase}
	fields := strings.Split(strings.TrimRight(out, "\x00"), "\x00")
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if entry == "" {
			continue
		}
		statusCode := entry
		var fd FileDiff
		switch {
		case strings.HasPrefix(statusCode, "A"):
			fd.Status = "added"
			i++
			fd.Path = fields[i]
		case strings.HasPrefix(statusCode, "D"):
			fd.Status = "deleted"
			i++
			fd.Path = fields[i]
		case strings.HasPrefix(statusCode, "R"):
			fd.Status = "renamed"
			i++
			fd.OldPath = fields[i]
			i++
			fd.Path = fields[i]
		default:
			fd.Status = "modified"
			i++
			fd.Path = fields[i]
		}

		fd.Binary = isBinary(ctx, r, mergeBase, fd.Path)
		if !fd.Binary {
			if fd.Status != "added" {
				oldPath := fd.Path
				if fd.OldPath != "" {
					oldPath = fd.OldPath
				}
				fd.OldBlob, _ = r.Run(ctx, "show", mergeBase+":"+oldPath)
			}
			if fd.Status != "deleted" {
				fd.NewBlob, _ = r.Run(ctx, "show", "HEAD:"+fd.Path)
			}
		}

		diff.Files = append(diff.Files, fd)
	}

	return diff, nil
}

func isBinary(ctx context.Context, r *Runner, mergeBase, path string) bool {
	out, err := r.Run(ctx, "diff", "--numstat", mergeBase, "HEAD", "--", path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(out, "-\t-\t")
}

// DeleteFile removes path from the attempt's worktree and commits the
// removal. Returns an error if path is untracked or outside the worktree.
func (m *Manager) DeleteFile(ctx context.Context, attemptID, relPath string) error {
	lock := m.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	if strings.HasPrefix(relPath, "..") || strings.HasPrefix(relPath, "/") {
		return attemptInvalidPath(relPath)
	}

	path := m.WorktreePath(attemptID)
	if !isGitWorktree(path) {
		return attemptNotProvisioned(attemptID)
	}
	r := NewRunner(path)

	if _, err := r.Run(ctx, "ls-files", "--error-unmatch", relPath); err != nil {
		return attemptInvalidPath(relPath)
	}

	if _, err := r.Run(ctx, "rm", "-f", relPath); err != nil {
		return err
	}
	_, err := r.Run(ctx, "commit", "-m", CheckpointMessage(attemptID, "delete "+relPath))
	return err
}
