package executor

import (
	"strings"
	"time"

	"github.com/randalmurphal/orc/internal/store"
)

// ErrorEntriesFromStderr splits a process's persisted stderr into its
// chunks (split on the literal StderrChunkBoundary marker) and emits one
// ErrorMessage entry per non-empty chunk, timestamped at the moment of
// normalization (§3 "Entries derived from stderr chunks are tagged
// ErrorMessage and timestamped at the moment of normalization").
func ErrorEntriesFromStderr(stderr string, now time.Time) []NormalizedEntry {
	if stderr == "" {
		return nil
	}
	var entries []NormalizedEntry
	for _, chunk := range strings.Split(stderr, store.StderrChunkBoundary) {
		chunk = stripStderrBoundaries(chunk)
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		ts := now
		entries = append(entries, NormalizedEntry{
			Timestamp: &ts,
			EntryType: EntryErrorMessage,
			Content:   chunk,
		})
	}
	return entries
}

// MergeAndSort combines a normalized conversation's entries with
// stderr-derived error entries and applies the §3 ordering invariant.
func MergeAndSort(entries []NormalizedEntry, errorEntries []NormalizedEntry) []NormalizedEntry {
	merged := make([]NormalizedEntry, 0, len(entries)+len(errorEntries))
	merged = append(merged, entries...)
	merged = append(merged, errorEntries...)
	sortEntries(merged)
	return merged
}
