package hosting

import "errors"

// ErrNoPRFound is returned when no PR/MR exists for the given branch.
var ErrNoPRFound = errors.New("no pull request found for branch")
