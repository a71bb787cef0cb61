package executor

import (
	"bufio"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/randalmurphal/orc/internal/store"
)

// rawLine is the wire-format shape of a single JSONL line emitted by the
// coding-agent family of executors. Adapters tolerant of other dialects
// should define their own shape and reuse scanLines for framing.
type rawLine struct {
	Type       string          `json:"type"`
	Timestamp  string          `json:"timestamp"`
	Content    string          `json:"content"`
	ActionType string          `json:"action_type"`
	Plan       string          `json:"plan"`
	Path       string          `json:"path"`
	SessionID  string          `json:"session_id"`
	Summary    string          `json:"summary"`
	Metadata   json.RawMessage `json:"metadata"`
}

// scanLines splits persisted stdout into individual lines, skipping
// blank ones. Line-oriented JSONL parsing per §4.3.
func scanLines(stdout string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// parseTimestamp parses an RFC3339 timestamp, returning nil on failure
// or an empty string (§3 "timestamp? (RFC3339)").
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// canonicalizePath rewrites path relative to canonicalDir on a
// best-effort basis, falling back to the raw path on failure (§4.3).
func canonicalizePath(path, canonicalDir string) string {
	if path == "" || canonicalDir == "" {
		return path
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(canonicalDir, abs)
	}
	rel, err := filepath.Rel(canonicalDir, abs)
	if err != nil {
		return path
	}
	return rel
}

// sortEntries applies the ordering invariant from §3: None timestamps
// sort before Some timestamps; Some timestamps ascend; ties preserve
// insertion order (stable sort).
func sortEntries(entries []NormalizedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Timestamp, entries[j].Timestamp
		if a == nil && b == nil {
			return false
		}
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
}

// stripStderrBoundaries removes stray inline occurrences of the stderr
// chunk boundary marker before it reaches a parser (§6 "Normalizers
// MUST strip stray inline occurrences").
func stripStderrBoundaries(s string) string {
	return strings.ReplaceAll(s, store.StderrChunkBoundary, "")
}
