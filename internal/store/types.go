package store

import "time"

// Task statuses.
const (
	TaskStatusTodo  = "Todo"
	TaskStatusDoing = "Doing"
	TaskStatusDone  = "Done"
)

// ExecutionProcess types (§3 ExecutionProcess.process_type).
const (
	ProcessTypeSetupScript = "SetupScript"
	ProcessTypeCodingAgent = "CodingAgent"
	ProcessTypeDevServer   = "DevServer"
	ProcessTypeFollowup    = "Followup"
)

// ExecutionProcess terminal/running statuses.
const (
	ProcessStatusRunning   = "Running"
	ProcessStatusCompleted = "Completed"
	ProcessStatusFailed    = "Failed"
	ProcessStatusKilled    = "Killed"
)

// StderrChunkBoundary is the literal in-band marker inserted between
// independent stderr read chunks (§3, §6).
const StderrChunkBoundary = "---STDERR_CHUNK_BOUNDARY---"

// Project scopes a repository checkout and its per-repo settings: the
// dev-server singleton, the setup/dev shell lines the Coordinator runs,
// hosting provider tokens, and the editor used by open_in_editor. CRUD
// on Project is out of scope for the lifecycle engine itself (§1
// Non-goals) but the row is still needed by C5/C6/C7 (§3 NEW).
type Project struct {
	ID                string
	RepoPath          string
	DefaultBaseBranch string
	SetupScript       string // optional
	DevScript         string // optional
	GitHubToken       string // optional, overrides GITHUB_TOKEN env var
	GitLabToken       string // optional, overrides GITLAB_TOKEN env var
	PRBaseBranch      string // optional; create_pr falls back to the attempt's BaseBranch
	EditorType        string // optional: vscode, cursor, windsurf, intellij, zed, custom
	EditorCommand     string // optional, required when EditorType == "custom"
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Task is a unit of work that may have one or more attempts against it.
type Task struct {
	ID                string
	ProjectID         string
	Title             string
	Description       string
	Status            string
	ParentTaskAttempt string // set when created via plan approval
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Attempt is an isolated, reproducible execution of an executor command
// against a task's project repository (§3 Attempt).
type Attempt struct {
	ID              string
	TaskID          string
	ProjectID       string
	Executor        string
	BaseBranch      string
	WorktreePath    string
	BranchName      string
	ParentAttemptID string // optional, follow-up/plan-descent forks
	MergeCommit     string // optional
	PRUrl           string
	PRNumber        int
	PRStatus        string
	DevServerURL    string
	CreatedAt       time.Time
}

// ExecutionProcess is a single spawned executor process belonging to an
// attempt (§3 ExecutionProcess).
type ExecutionProcess struct {
	ID                string
	AttemptID         string
	ProjectID         string
	ProcessType       string
	ExecutorType      string // which C3 adapter parses this process's logs
	Command           string
	WorkingDirectory  string
	Status            string
	ExitCode          *int
	PGID              int
	StartedAt         time.Time
	EndedAt           *time.Time
	Stdout            string
	Stderr            string
}

// ExecutorSession is the optional sidecar carrying prompt/summary/session
// id metadata for an ExecutionProcess (§3 ExecutorSession).
type ExecutorSession struct {
	ID        string
	ProcessID string
	Prompt    string
	Summary   string
	SessionID string
	CreatedAt time.Time
}

// ProcessSummary is the lightweight listing projection of ExecutionProcess
// used by find_summaries.
type ProcessSummary struct {
	ID          string
	ProcessType string
	Status      string
	StartedAt   time.Time
	EndedAt     *time.Time
}

// EventLog is a persisted record of an Event Bus (C8) notification,
// written for audit/replay independent of the in-memory fan-out.
type EventLog struct {
	ID        string
	AttemptID string
	ProcessID string // optional
	EventType string
	Data      string // JSON-encoded payload
	Source    string
	CreatedAt time.Time
}
