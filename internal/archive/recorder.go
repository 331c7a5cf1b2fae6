package archive

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"scriptview/internal/feed"
	"scriptview/internal/logging"
	"scriptview/internal/metrics"
	"scriptview/internal/transcript"
)

// Recorder archives one daemon session. It receives every new transcript,
// stores the entries that are settled (all but the last, which the producer
// may still be typing) and holds back the last entry until Flush.
type Recorder struct {
	store     *Store
	sessionID string
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	mu           sync.Mutex
	pending      []feed.Entry
	pendingIndex int
}

// NewRecorder registers a session and returns a recorder for it.
func (s *Store) NewRecorder(ctx context.Context, sessionID, feedPath string, m *metrics.Metrics, logger *slog.Logger) (*Recorder, error) {
	if err := s.beginSession(ctx, sessionID, feedPath, time.Now()); err != nil {
		return nil, err
	}
	return &Recorder{
		store:     s,
		sessionID: sessionID,
		metrics:   m,
		logger:    logging.NewComponentLogger(logger, "archive"),
		now:       time.Now,
	}, nil
}

// TranscriptReplaced archives the settled part of entries. A previously held
// entry that the new transcript does not continue (the producer restarted
// and wrote a fresh feed) is archived as well.
func (r *Recorder) TranscriptReplaced(ctx context.Context, entries []feed.Entry) {
	settled := transcript.Settled(entries)

	r.mu.Lock()
	var orphaned []feed.Entry
	if len(r.pending) > 0 && !continues(entries, r.pendingIndex, r.pending[0]) {
		orphaned = r.pending
	}
	if len(entries) > 0 {
		r.pending = []feed.Entry{entries[len(entries)-1]}
		r.pendingIndex = len(entries) - 1
	} else {
		r.pending = nil
		r.pendingIndex = 0
	}
	r.mu.Unlock()

	r.write(ctx, orphaned)
	r.write(ctx, settled)
}

// continues reports whether entries still carries held at index, either
// unchanged or grown into a longer line.
func continues(entries []feed.Entry, index int, held feed.Entry) bool {
	if index >= len(entries) {
		return false
	}
	next := entries[index]
	return next == held || strings.HasPrefix(next.Text, held.Text)
}

// Flush archives the entry held back as unsettled. The daemon calls it on
// shutdown.
func (r *Recorder) Flush(ctx context.Context) {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	r.write(ctx, pending)
}

func (r *Recorder) write(ctx context.Context, entries []feed.Entry) {
	if len(entries) == 0 {
		return
	}
	inserted, err := r.store.Append(ctx, r.sessionID, entries, r.now())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "history archive write failed", "archive_write_failed",
			logging.Error(err),
			logging.Int(logging.FieldEntryCount, len(entries)),
			logging.String(logging.FieldErrorHint, "check state_dir free space and history.db permissions"),
			logging.String(logging.FieldImpact, "entries missing from scriptview history"),
		)
		return
	}
	if inserted > 0 {
		r.metrics.AddArchived(inserted)
		r.logger.Debug("archived settled entries", logging.Int("settled_count", inserted))
	}
}
