// Package coordinator is the Attempt Coordinator (C5): the state machine
// that sequences an attempt through Setup -> Main -> {Followup, DevServer,
// Merge, Rebase}, drives plan approval, and enforces the cross-process
// invariants the Attempt Store and Process Supervisor cannot see alone.
package coordinator

import "github.com/randalmurphal/orc/internal/store"

// State names the Coordinator's attempt-level phases (§4.5).
type State string

const (
	StateNew              State = "New"
	StateProvisioning     State = "Provisioning"
	StateSetupRunning     State = "SetupRunning"
	StateSetupFailed      State = "SetupFailed"
	StateMainRunning      State = "MainRunning"
	StateMainFailed       State = "MainFailed"
	StateIdle             State = "Idle"
	StateFollowupRunning  State = "FollowupRunning"
	StateDevServerRunning State = "DevServerRunning"
	StateMergePending     State = "MergePending"
	StateMerged           State = "Merged"
	StateConflicted       State = "Conflicted"
	StateRebasePending    State = "RebasePending"
	StateRebaseConflict   State = "RebaseConflict"
	StateStopped          State = "Stopped"
)

// ExecutionState is the opaque, monotone payload the `get_execution_state`
// query returns to the UI layer (§4.5 Open Question): it collapses the
// newest in-flight process and the attempt's terminal markers into one
// struct rather than a persisted state-machine row, mirroring the
// teacher's Worker.GetStatus()/GetError() derive-from-live-fields pattern.
type ExecutionState struct {
	AttemptID     string
	State         State
	LatestProcess *store.ProcessSummary
	MergeCommit   string
	PRUrl         string
	PRStatus      string
	DevServerURL  string
}

// deriveState collapses the newest process's type/status into a State.
// It never back-transitions into an earlier phase than a terminal
// process already implies (§4.5 "monotone, no phantom back-transitions").
func deriveState(latest *store.ProcessSummary) State {
	if latest == nil {
		return StateNew
	}
	switch latest.ProcessType {
	case store.ProcessTypeSetupScript:
		switch latest.Status {
		case store.ProcessStatusRunning:
			return StateSetupRunning
		case store.ProcessStatusFailed, store.ProcessStatusKilled:
			return StateSetupFailed
		default:
			return StateIdle
		}
	case store.ProcessTypeCodingAgent:
		switch latest.Status {
		case store.ProcessStatusRunning:
			return StateMainRunning
		case store.ProcessStatusFailed:
			return StateMainFailed
		case store.ProcessStatusKilled:
			return StateStopped
		default:
			return StateIdle
		}
	case store.ProcessTypeFollowup:
		if latest.Status == store.ProcessStatusRunning {
			return StateFollowupRunning
		}
		return StateIdle
	case store.ProcessTypeDevServer:
		if latest.Status == store.ProcessStatusRunning {
			return StateDevServerRunning
		}
		return StateIdle
	default:
		return StateIdle
	}
}
