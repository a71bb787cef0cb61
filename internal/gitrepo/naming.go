package gitrepo

import (
	"fmt"
	"path/filepath"
)

// BranchPrefix is prepended to every attempt branch name.
const BranchPrefix = "attempt/"

// BranchName returns the deterministic branch name for an attempt id,
// per §6's "branch naming MUST be deterministic from attempt id".
func BranchName(attemptID string) string {
	return BranchPrefix + attemptID
}

// WorktreeDirName returns the directory name for an attempt's worktree.
func WorktreeDirName(attemptID string) string {
	return attemptID
}

// WorktreePath returns the full worktree path under root, per §6's
// "{configured_root}/{attempt_id}" layout.
func WorktreePath(root, attemptID string) string {
	return filepath.Join(root, attemptID)
}

// CheckpointMessage builds a commit message for a checkpoint-style commit.
func CheckpointMessage(attemptID, label string) string {
	return fmt.Sprintf("[attempt %s] %s", attemptID, label)
}
