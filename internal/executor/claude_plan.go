package executor

// ClaudePlanAdapter is the plan-presentation dialect used when an
// attempt's main process is expected to propose a plan rather than make
// direct edits. It shares the CodingAgent's JSONL wire format but is
// registered under a distinct executor_type so the Coordinator's
// approve-plan scan (§4.5) can select processes by type.
type ClaudePlanAdapter struct {
	*CodingAgentAdapter
}

// NewClaudePlanAdapter returns a ClaudePlanAdapter launching the default
// coding-agent binary in plan mode.
func NewClaudePlanAdapter() *ClaudePlanAdapter {
	return &ClaudePlanAdapter{CodingAgentAdapter: NewCodingAgentAdapter("")}
}

func (a *ClaudePlanAdapter) Launch(worktreePath string, prompt string) CommandSpec {
	spec := a.CodingAgentAdapter.Launch(worktreePath, prompt)
	spec.Args = append(spec.Args, "--permission-mode", "plan")
	return spec
}

func (a *ClaudePlanAdapter) NormalizeLogs(stdout string, canonicalWorkingDir string) NormalizedConversation {
	conv := a.CodingAgentAdapter.NormalizeLogs(stdout, canonicalWorkingDir)
	conv.ExecutorType = TypeClaudePlan
	return conv
}

// LatestPlanPresentation scans entries in reverse order for the most
// recent ToolUse{PlanPresentation} and returns its plan text (§4.5
// approve-plan).
func LatestPlanPresentation(conv NormalizedConversation) (plan string, ok bool) {
	for i := len(conv.Entries) - 1; i >= 0; i-- {
		e := conv.Entries[i]
		if e.EntryType == EntryToolUse && e.ActionType != nil && e.ActionType.Kind == "PlanPresentation" {
			return e.ActionType.Plan, true
		}
	}
	return "", false
}
