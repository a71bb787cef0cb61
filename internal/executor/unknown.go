package executor

// UnknownAdapter is the opaque fallback returned for an unrecognized
// executor_type (§4.3). It yields empty normalization. Its Launch returns
// a CommandSpec with no program path; the Coordinator does not check an
// executor_type against the registry, so spawning a process for an
// unregistered type fails when the process is started.
type UnknownAdapter struct{}

func (UnknownAdapter) Launch(worktreePath string, prompt string) CommandSpec {
	return CommandSpec{Dir: worktreePath}
}

func (UnknownAdapter) NormalizeLogs(stdout string, canonicalWorkingDir string) NormalizedConversation {
	return NormalizedConversation{}
}
