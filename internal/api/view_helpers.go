package api

import (
	"fmt"
	"strings"
)

// Reader guidance shown when there is nothing to display.
const (
	MessageNoFeed        = "No subtitle data (maybe mpv isn't running?)"
	MessageWaiting       = "No subtitles yet..."
	MessageStartPlayer   = "Start mpv to see subtitles here."
	MessageInstallScript = "Install the script and start mpv to see subtitles."
)

// StatusMessage picks the guidance line for an empty transcript. It returns
// "" when entries are available.
func StatusMessage(feedPresent, scriptInstalled bool, entries int) string {
	if entries > 0 {
		return ""
	}
	switch {
	case feedPresent:
		return MessageWaiting
	case scriptInstalled:
		return MessageStartPlayer
	default:
		return MessageInstallScript
	}
}

// FormatEntryLine renders an entry as "[12.3s] text".
func FormatEntryLine(entry TranscriptEntry) string {
	return fmt.Sprintf("[%.1fs] %s", entry.StartTime, entry.Text)
}

// FormatEntryLines renders entries one per line, oldest first.
func FormatEntryLines(entries []TranscriptEntry) string {
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(FormatEntryLine(entry))
		b.WriteByte('\n')
	}
	return b.String()
}

// ClampDisplayCount bounds a "show last" count to the supported range.
func ClampDisplayCount(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
