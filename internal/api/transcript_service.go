package api

import (
	"context"
	"strings"

	"scriptview/internal/archive"
	"scriptview/internal/feed"
	"scriptview/internal/transcript"
)

// TranscriptReader abstracts the live transcript needed for API queries.
type TranscriptReader interface {
	TailVersion(n int) ([]feed.Entry, uint64)
	Status() transcript.Status
}

// HistoryReader abstracts archive queries.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]archive.Record, error)
	Search(ctx context.Context, query string, limit int) ([]archive.Record, error)
}

// TranscriptService exposes read-only transcript operations returning API DTOs.
type TranscriptService struct {
	store        TranscriptReader
	history      HistoryReader
	defaultLimit int
}

// NewTranscriptService constructs a service. history may be nil when the
// archive is disabled.
func NewTranscriptService(store TranscriptReader, history HistoryReader, defaultLimit int) *TranscriptService {
	if store == nil {
		return nil
	}
	return &TranscriptService{store: store, history: history, defaultLimit: defaultLimit}
}

// DefaultLimit returns the number of entries served when the caller does not ask.
func (s *TranscriptService) DefaultLimit() int {
	if s == nil {
		return 0
	}
	return s.defaultLimit
}

// Transcript returns the last limit entries. A nil limit uses the configured
// display count and zero returns everything.
func (s *TranscriptService) Transcript(limit *int) TranscriptResponse {
	if s == nil || s.store == nil {
		return TranscriptResponse{Entries: []TranscriptEntry{}}
	}
	n := s.defaultLimit
	if limit != nil {
		n = *limit
	}
	if n < 0 {
		n = 0
	}
	entries, version := s.store.TailVersion(n)
	total := s.store.Status().Entries
	return TranscriptResponse{
		Version: version,
		Total:   total,
		Entries: FromEntries(entries),
	}
}

// History returns archived entries, optionally filtered by a text query.
func (s *TranscriptService) History(ctx context.Context, query string, limit int) (HistoryResponse, error) {
	if s == nil || s.history == nil {
		return HistoryResponse{Records: []HistoryRecord{}}, ErrHistoryDisabled
	}
	var (
		records []archive.Record
		err     error
	)
	if q := strings.TrimSpace(query); q != "" {
		records, err = s.history.Search(ctx, q, limit)
	} else {
		records, err = s.history.Recent(ctx, limit)
	}
	if err != nil {
		return HistoryResponse{}, err
	}
	return HistoryResponse{Records: FromArchiveRecords(records)}, nil
}
