package transcript

import (
	"strings"

	"scriptview/internal/feed"
)

// Collapse merges progressively typed fragments. An entry is dropped when the
// entry immediately after it starts with its text; the last entry is always
// kept. Comparison is byte-exact and case-sensitive. The result is a new slice
// holding the kept entries in their original order.
func Collapse(entries []feed.Entry) []feed.Entry {
	out := make([]feed.Entry, 0, len(entries))
	for i, entry := range entries {
		if i+1 < len(entries) && strings.HasPrefix(entries[i+1].Text, entry.Text) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// Settled returns the entries of a collapsed transcript that can no longer be
// extended by the producer: every entry except the last.
func Settled(collapsed []feed.Entry) []feed.Entry {
	if len(collapsed) < 2 {
		return nil
	}
	return append([]feed.Entry(nil), collapsed[:len(collapsed)-1]...)
}
