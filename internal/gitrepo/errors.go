package gitrepo

import "github.com/randalmurphal/orc/internal/attemperr"

func attemptNotProvisioned(attemptID string) *attemperr.AttemptError {
	return attemperr.WorktreeMissing(attemptID)
}

func attemptInvalidPath(path string) *attemperr.AttemptError {
	return attemperr.InvalidState("path not tracked in worktree: " + path)
}
