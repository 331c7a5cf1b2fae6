package reload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"scriptview/internal/logging"
)

// Reload triggers recorded in logs.
const (
	TriggerStartup = "startup"
	TriggerWatch   = "watch"
	TriggerManual  = "manual"
)

// ErrStopped is returned to callers waiting on a loop that has exited.
var ErrStopped = errors.New("reload loop stopped")

// Runner performs a single reload cycle.
type Runner interface {
	Reload(ctx context.Context) Outcome
}

type request struct {
	reply chan Outcome
}

// Loop is the single writer of the transcript. It reloads once at start and
// then once per batch of change signals, never faster than the configured
// minimum interval.
type Loop struct {
	runner   Runner
	limiter  *rate.Limiter
	requests chan request
	logger   *slog.Logger

	doneOnce sync.Once
	done     chan struct{}
}

// NewLoop constructs a loop around runner. A minInterval of zero disables
// throttling.
func NewLoop(runner Runner, minInterval time.Duration, logger *slog.Logger) *Loop {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Loop{
		runner:   runner,
		limiter:  rate.NewLimiter(limit, 1),
		requests: make(chan request, 8),
		logger:   logging.NewComponentLogger(logger, "reload-loop"),
		done:     make(chan struct{}),
	}
}

// Request schedules a reload without waiting for it. When a request is
// already pending the call is a no-op; the pending reload will read the
// latest content anyway.
func (l *Loop) Request() {
	select {
	case l.requests <- request{}:
	default:
	}
}

// Reload schedules a reload and waits for the cycle that serves it.
func (l *Loop) Reload(ctx context.Context) (Outcome, error) {
	reply := make(chan Outcome, 1)
	select {
	case l.requests <- request{reply: reply}:
	case <-l.done:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case outcome := <-reply:
		return outcome, nil
	case <-l.done:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Run reloads eagerly and then serves change signals from events and manual
// requests until ctx ends or events is closed. Signals that arrive while a
// batch is waiting or reloading are folded into the next batch, so the final
// reload always observes the latest content.
func (l *Loop) Run(ctx context.Context, events <-chan struct{}) error {
	defer l.doneOnce.Do(func() { close(l.done) })

	l.limiter.Allow()
	l.reload(ctx, TriggerStartup, nil)

	for {
		var (
			trigger string
			replies []chan Outcome
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				l.reload(ctx, TriggerWatch, nil)
				return nil
			}
			trigger = TriggerWatch
		case req := <-l.requests:
			trigger = TriggerManual
			replies = appendReply(replies, req)
		}

		if err := l.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		coalesced, more, closed := l.drain(events)
		replies = append(replies, more...)
		if coalesced > 0 {
			l.logger.Debug("coalesced change signals", logging.Int("pending", coalesced))
		}
		l.reload(ctx, trigger, replies)
		if closed {
			return nil
		}
	}
}

// drain consumes every signal that is already pending without blocking.
func (l *Loop) drain(events <-chan struct{}) (count int, replies []chan Outcome, closed bool) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return count, replies, true
			}
			count++
		case req := <-l.requests:
			count++
			replies = appendReply(replies, req)
		default:
			return count, replies, false
		}
	}
}

func (l *Loop) reload(ctx context.Context, trigger string, replies []chan Outcome) {
	outcome := l.runner.Reload(logging.WithTrigger(ctx, trigger))
	for _, reply := range replies {
		reply <- outcome
	}
}

func appendReply(replies []chan Outcome, req request) []chan Outcome {
	if req.reply == nil {
		return replies
	}
	return append(replies, req.reply)
}
