package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TranscriptEntry describes one collapsed subtitle line in a transport-friendly format.
type TranscriptEntry struct {
	Text      string   `json:"text"`
	StartTime float64  `json:"startTime"`
	EndTime   *float64 `json:"endTime,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// TranscriptStatus mirrors the store flags readers need to explain an empty view.
type TranscriptStatus struct {
	FeedPath        string `json:"feedPath"`
	FeedPresent     bool   `json:"feedPresent"`
	ScriptPath      string `json:"scriptPath,omitempty"`
	ScriptInstalled bool   `json:"scriptInstalled"`
	Entries         int    `json:"entries"`
	Version         uint64 `json:"version"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
	LastReloadAt    string `json:"lastReloadAt,omitempty"`
	LastOutcome     string `json:"lastOutcome,omitempty"`
	Message         string `json:"message,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	SessionID    string           `json:"sessionId,omitempty"`
	LockFilePath string           `json:"lockFilePath"`
	ArchivePath  string           `json:"archivePath,omitempty"`
	APIAddress   string           `json:"apiAddress,omitempty"`
	WatchMode    string           `json:"watchMode"`
	DisplayCount int              `json:"displayCount"`
	Transcript   TranscriptStatus `json:"transcript"`
}

// TranscriptResponse wraps the tail of the transcript and the version it was read at.
type TranscriptResponse struct {
	Version uint64            `json:"version"`
	Total   int               `json:"total"`
	Entries []TranscriptEntry `json:"entries"`
}

// ClearResponse reports the version produced by a clear.
type ClearResponse struct {
	Version uint64 `json:"version"`
}

// ReloadResponse reports the outcome of a forced reload.
type ReloadResponse struct {
	Outcome string `json:"outcome"`
}

// HistoryRecord describes an archived transcript entry.
type HistoryRecord struct {
	ID         int64    `json:"id"`
	SessionID  string   `json:"sessionId"`
	Text       string   `json:"text"`
	StartTime  float64  `json:"startTime"`
	EndTime    *float64 `json:"endTime,omitempty"`
	Timestamp  int64    `json:"timestamp"`
	ArchivedAt string   `json:"archivedAt,omitempty"`
}

// HistoryResponse wraps a collection of archived entries.
type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}

// StreamEventTranscript tags frames carrying a TranscriptResponse.
const StreamEventTranscript = "transcript"

// StreamMessage is one frame on the transcript websocket.
type StreamMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// StatusLine is one labelled row of `scriptview status` output.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}
