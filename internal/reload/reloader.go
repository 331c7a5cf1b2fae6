package reload

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"scriptview/internal/feed"
	"scriptview/internal/logging"
	"scriptview/internal/metrics"
	"scriptview/internal/transcript"
)

// Outcome is the result of one reload cycle.
type Outcome string

const (
	OutcomeReplaced    Outcome = "replaced"
	OutcomeMissing     Outcome = "missing"
	OutcomeUnreadable  Outcome = "unreadable"
	OutcomeParseFailed Outcome = "parse_failed"
)

// Sink receives every freshly installed transcript.
type Sink interface {
	TranscriptReplaced(ctx context.Context, entries []feed.Entry)
}

// Options configures a Reloader.
type Options struct {
	FeedPath   string
	MaxBytes   int64
	ScriptPath string
	Store      *transcript.Store
	Metrics    *metrics.Metrics
	Sinks      []Sink
	Logger     *slog.Logger
}

// Reloader performs one read, parse, collapse and replace cycle against the
// feed. Failures never escape: they are recorded on the store, logged, and
// counted, and the previous transcript stays in place.
type Reloader struct {
	feedPath   string
	maxBytes   int64
	scriptPath string
	store      *transcript.Store
	metrics    *metrics.Metrics
	sinks      []Sink
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	lastOutcome Outcome
}

// NewReloader constructs a Reloader.
func NewReloader(opts Options) *Reloader {
	return &Reloader{
		feedPath:   opts.FeedPath,
		maxBytes:   opts.MaxBytes,
		scriptPath: opts.ScriptPath,
		store:      opts.Store,
		metrics:    opts.Metrics,
		sinks:      append([]Sink(nil), opts.Sinks...),
		logger:     logging.NewComponentLogger(opts.Logger, "reload"),
		now:        time.Now,
	}
}

// Reload runs a single cycle and reports its outcome.
func (r *Reloader) Reload(ctx context.Context) Outcome {
	started := r.now()
	ctx = logging.WithReloadID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, r.logger)

	presence := feed.Probe(r.feedPath)
	r.store.SetFeedPresent(presence.Exists)
	r.metrics.SetFeedPresent(presence.Exists)
	if r.scriptPath != "" {
		r.store.SetScriptInstalled(fileExists(r.scriptPath))
	}

	outcome := r.cycle(ctx, logger)

	r.store.RecordReload(string(outcome), started)
	r.metrics.ObserveReload(string(outcome), r.now().Sub(started))
	return outcome
}

func (r *Reloader) cycle(ctx context.Context, logger *slog.Logger) Outcome {
	raw, err := feed.Read(r.feedPath, r.maxBytes)
	if err != nil {
		if errors.Is(err, feed.ErrResourceMissing) {
			r.report(logger, OutcomeMissing, func(l *slog.Logger) {
				l.Info("no subtitle data; feed not found",
					logging.String(logging.FieldOutcome, string(OutcomeMissing)),
					logging.String(logging.FieldFeedPath, r.feedPath),
					logging.String("reason", "maybe mpv isn't running"),
				)
			})
			return OutcomeMissing
		}
		r.report(logger, OutcomeUnreadable, func(l *slog.Logger) {
			logging.WarnWithContext(l, "feed unreadable; keeping previous transcript", "feed_unreadable",
				logging.String(logging.FieldOutcome, string(OutcomeUnreadable)),
				logging.String(logging.FieldFeedPath, r.feedPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check feed permissions, file type and feed.max_bytes"),
			)
		})
		return OutcomeUnreadable
	}

	entries, err := feed.Parse(raw)
	if err != nil {
		r.report(logger, OutcomeParseFailed, func(l *slog.Logger) {
			logging.WarnWithContext(l, "feed parse failed; keeping previous transcript", "feed_parse_failed",
				logging.String(logging.FieldOutcome, string(OutcomeParseFailed)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the producer may be mid-write; the next change retries"),
			)
		})
		return OutcomeParseFailed
	}

	collapsed := transcript.Collapse(entries)
	r.store.Replace(collapsed)
	r.metrics.SetTranscript(len(entries), len(collapsed), r.now())
	for _, sink := range r.sinks {
		sink.TranscriptReplaced(ctx, collapsed)
	}

	r.report(logger, OutcomeReplaced, func(l *slog.Logger) {
		l.Info("feed reloaded",
			logging.String(logging.FieldOutcome, string(OutcomeReplaced)),
			logging.Int(logging.FieldEntryCount, len(entries)),
			logging.Int("collapsed_count", len(collapsed)),
		)
	})
	logger.Debug("transcript replaced",
		logging.Int(logging.FieldEntryCount, len(entries)),
		logging.Int("collapsed_count", len(collapsed)),
	)
	return OutcomeReplaced
}

// report emits the detailed log only when the outcome differs from the
// previous cycle, so a feed rewritten many times a second does not flood the
// log with identical lines.
func (r *Reloader) report(logger *slog.Logger, outcome Outcome, emit func(*slog.Logger)) {
	r.mu.Lock()
	changed := r.lastOutcome != outcome
	r.lastOutcome = outcome
	r.mu.Unlock()
	if changed {
		emit(logger)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
