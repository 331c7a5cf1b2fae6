package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// FeedLine describes one entry for WriteFeed. EndTime is omitted when nil.
type FeedLine struct {
	Text      string   `json:"text"`
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Lines builds feed lines with increasing start times and timestamps.
func Lines(texts ...string) []FeedLine {
	out := make([]FeedLine, 0, len(texts))
	for i, text := range texts {
		out = append(out, FeedLine{Text: text, StartTime: float64(i), Timestamp: int64(1700000000 + i)})
	}
	return out
}

// WriteFeed atomically replaces the feed at path with lines, the way the mpv
// companion script does (write to a temp file, then rename).
func WriteFeed(t testing.TB, path string, lines []FeedLine) {
	t.Helper()

	if lines == nil {
		lines = []FeedLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		t.Fatalf("marshal feed: %v", err)
	}
	WriteRaw(t, path, data)
}

// WriteRaw atomically replaces path with data.
func WriteRaw(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename %s: %v", path, err)
	}
}
