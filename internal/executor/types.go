// Package executor is the Executor Registry (C3): pluggable adapters
// that know how to build a launch command for an attempt and how to
// normalize an executor's raw stdout into a NormalizedConversation.
package executor

import "time"

// EntryType enumerates the kinds of NormalizedEntry (§3).
type EntryType string

const (
	EntryUserMessage      EntryType = "UserMessage"
	EntryAssistantMessage EntryType = "AssistantMessage"
	EntrySystemMessage    EntryType = "SystemMessage"
	EntryToolUse          EntryType = "ToolUse"
	EntryErrorMessage     EntryType = "ErrorMessage"
)

// ActionType tags the kind of tool use represented by a ToolUse entry.
// PlanPresentation is the variant the Coordinator's approve-plan
// operation scans for.
type ActionType struct {
	Kind string // "PlanPresentation", "FileEdit", "Command", "Other", ...
	Plan string // populated when Kind == "PlanPresentation"
}

// NormalizedEntry is a single normalized conversation event.
type NormalizedEntry struct {
	Timestamp  *time.Time
	EntryType  EntryType
	Content    string
	ActionType *ActionType // only set when EntryType == ToolUse
	Metadata   map[string]any
}

// NormalizedConversation is the derived, non-persisted output of
// normalizing an ExecutionProcess's raw stdout (§3).
type NormalizedConversation struct {
	Entries      []NormalizedEntry
	SessionID    string
	ExecutorType string
	Prompt       string
	Summary      string
}

// CommandSpec describes how to launch an executor process: the binary,
// its arguments, and the working directory it should run in.
type CommandSpec struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Adapter is the capability set each executor type implements (§4.3,
// §9 "dynamic dispatch over executors").
type Adapter interface {
	// Launch builds the CommandSpec for running this executor against an
	// attempt's worktree, optionally with an input prompt.
	Launch(worktreePath string, prompt string) CommandSpec

	// NormalizeLogs parses persisted stdout into a NormalizedConversation.
	// canonicalWorkingDir is used to rewrite tool-use paths to be
	// relative, best-effort; parse failures fall back to the raw path.
	NormalizeLogs(stdout string, canonicalWorkingDir string) NormalizedConversation
}

// Type identifiers resolved by the Registry (§4.3 "resolves an adapter
// by the executor_type string").
const (
	TypeCodingAgent = "coding-agent"
	TypeClaudePlan  = "claude-plan"
	TypeSetupScript = "setup-script"
)
