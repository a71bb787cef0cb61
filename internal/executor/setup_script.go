package executor

// SetupScriptAdapter runs a project-configured shell script as a
// per-attempt setup step. Its normalization dialect is plain text: each
// persisted stdout line becomes a SystemMessage verbatim, since setup
// scripts have no structured wire format of their own (§4.5 "SetupScript
// uses the synthetic script prompt as its content").
type SetupScriptAdapter struct {
	script string
}

// NewSetupScriptAdapter returns a SetupScriptAdapter running script
// (a shell command line) via the system shell.
func NewSetupScriptAdapter(script string) *SetupScriptAdapter {
	return &SetupScriptAdapter{script: script}
}

func (a *SetupScriptAdapter) Launch(worktreePath string, prompt string) CommandSpec {
	script := a.script
	if prompt != "" {
		script = prompt
	}
	return CommandSpec{Path: "/bin/sh", Args: []string{"-c", script}, Dir: worktreePath}
}

func (a *SetupScriptAdapter) NormalizeLogs(stdout string, canonicalWorkingDir string) NormalizedConversation {
	conv := NormalizedConversation{ExecutorType: TypeSetupScript, Prompt: a.script}
	for _, line := range scanLines(stdout) {
		conv.Entries = append(conv.Entries, NormalizedEntry{
			EntryType: EntrySystemMessage,
			Content:   line,
		})
	}
	return conv
}
