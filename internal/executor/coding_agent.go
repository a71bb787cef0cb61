package executor

import "encoding/json"

// CodingAgentAdapter is the default executor: it launches an arbitrary
// coding-agent binary and parses its stdout as line-oriented JSONL
// (§4.3). Unparseable lines are emitted as a SystemMessage carrying the
// raw line, per the adapter's documented failure policy.
type CodingAgentAdapter struct {
	binPath string
}

// NewCodingAgentAdapter returns a CodingAgentAdapter that launches
// binPath (or "claude" if empty, the default coding-agent binary).
func NewCodingAgentAdapter(binPath string) *CodingAgentAdapter {
	if binPath == "" {
		binPath = "claude"
	}
	return &CodingAgentAdapter{binPath: binPath}
}

func (a *CodingAgentAdapter) Launch(worktreePath string, prompt string) CommandSpec {
	args := []string{"--print", "--output-format", "stream-json"}
	if prompt != "" {
		args = append(args, prompt)
	}
	return CommandSpec{Path: a.binPath, Args: args, Dir: worktreePath}
}

func (a *CodingAgentAdapter) NormalizeLogs(stdout string, canonicalWorkingDir string) NormalizedConversation {
	conv := NormalizedConversation{ExecutorType: TypeCodingAgent}
	for _, line := range scanLines(stdout) {
		var raw rawLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			conv.Entries = append(conv.Entries, NormalizedEntry{
				EntryType: EntrySystemMessage,
				Content:   line,
			})
			continue
		}

		if raw.SessionID != "" {
			conv.SessionID = raw.SessionID
		}
		if raw.Summary != "" {
			conv.Summary = raw.Summary
		}

		entry := NormalizedEntry{
			Timestamp: parseTimestamp(raw.Timestamp),
			Content:   raw.Content,
		}

		switch raw.Type {
		case "user":
			entry.EntryType = EntryUserMessage
		case "assistant":
			entry.EntryType = EntryAssistantMessage
		case "system":
			entry.EntryType = EntrySystemMessage
		case "tool_use":
			entry.EntryType = EntryToolUse
			entry.ActionType = &ActionType{
				Kind: raw.ActionType,
				Plan: raw.Plan,
			}
			if raw.Path != "" {
				entry.Content = canonicalizePath(raw.Path, canonicalWorkingDir)
			}
		default:
			entry.EntryType = EntrySystemMessage
			entry.Content = line
		}

		conv.Entries = append(conv.Entries, entry)
	}

	sortEntries(conv.Entries)
	return conv
}
