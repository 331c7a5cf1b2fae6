package ipc

import "scriptview/internal/api"

// serviceName prefixes every RPC method.
const serviceName = "Scriptview"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// TranscriptRequest asks for the tail of the transcript. A nil Limit uses
// display.count and zero returns everything.
type TranscriptRequest struct {
	Limit *int `json:"limit,omitempty"`
}

// TranscriptResponse contains transcript entries.
type TranscriptResponse = api.TranscriptResponse

// ClearRequest empties the transcript.
type ClearRequest struct{}

// ClearResponse reports the new transcript version.
type ClearResponse = api.ClearResponse

// ReloadRequest forces a reload and waits for its outcome.
type ReloadRequest struct{}

// ReloadResponse reports the reload outcome.
type ReloadResponse = api.ReloadResponse

// HistoryRequest queries the archive. An empty Query lists recent entries.
type HistoryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// HistoryResponse contains archived entries.
type HistoryResponse = api.HistoryResponse

// StopRequest asks the daemon process to exit.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
