package api

import (
	"time"

	"scriptview/internal/archive"
	"scriptview/internal/feed"
	"scriptview/internal/transcript"
)

// FromEntry converts a feed entry to its API representation.
func FromEntry(entry feed.Entry) TranscriptEntry {
	dto := TranscriptEntry{
		Text:      entry.Text,
		StartTime: entry.StartTime,
		Timestamp: entry.Timestamp,
	}
	if end, ok := entry.End(); ok {
		dto.EndTime = &end
	}
	return dto
}

// FromEntries converts a slice of entries. The result is never nil so JSON
// consumers always see an array.
func FromEntries(entries []feed.Entry) []TranscriptEntry {
	out := make([]TranscriptEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// ToEntry converts an API entry back into a feed entry.
func ToEntry(dto TranscriptEntry) feed.Entry {
	entry := feed.NewEntry(dto.Text, dto.StartTime, dto.Timestamp)
	if dto.EndTime != nil {
		entry = entry.WithEnd(*dto.EndTime)
	}
	return entry
}

// FromStoreStatus converts store flags, attaching the paths they describe.
func FromStoreStatus(status transcript.Status, feedPath, scriptPath string) TranscriptStatus {
	return TranscriptStatus{
		FeedPath:        feedPath,
		FeedPresent:     status.FeedPresent,
		ScriptPath:      scriptPath,
		ScriptInstalled: status.ScriptInstalled,
		Entries:         status.Entries,
		Version:         status.Version,
		UpdatedAt:       formatTime(status.UpdatedAt),
		LastReloadAt:    formatTime(status.LastReload),
		LastOutcome:     status.LastOutcome,
		Message:         StatusMessage(status.FeedPresent, status.ScriptInstalled, status.Entries),
	}
}

// FromArchiveRecords converts archived rows.
func FromArchiveRecords(records []archive.Record) []HistoryRecord {
	out := make([]HistoryRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, HistoryRecord{
			ID:         rec.ID,
			SessionID:  rec.SessionID,
			Text:       rec.Text,
			StartTime:  rec.StartTime,
			EndTime:    rec.EndTime,
			Timestamp:  rec.Timestamp,
			ArchivedAt: formatTime(rec.ArchivedAt),
		})
	}
	return out
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}
