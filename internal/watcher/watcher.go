package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"scriptview/internal/logging"
)

// DefaultFallbackInterval is the polling period used when the feed directory
// cannot be watched and no explicit poll interval is configured.
const DefaultFallbackInterval = time.Second

// Watch modes reported by Mode.
const (
	ModeIdle       = "idle"
	ModeNotify     = "notify"
	ModePoll       = "poll"
	ModeNotifyPoll = "notify+poll"
)

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename | fsnotify.Chmod

// Options configures a Watcher.
type Options struct {
	// Path is the feed file. Its parent directory is watched so creation,
	// removal and atomic rename-into-place are all observed.
	Path string
	// PollInterval adds a periodic signal alongside file notifications. Zero
	// disables it while notifications work.
	PollInterval time.Duration
	// FallbackInterval is used when notifications are unavailable.
	FallbackInterval time.Duration
	Logger           *slog.Logger
}

// Watcher turns filesystem activity on the feed into change signals. Signals
// are delivered on a channel with capacity one using non-blocking sends, so a
// burst of writes collapses into a single pending signal and a pending signal
// is never dropped.
type Watcher struct {
	path             string
	dir              string
	pollInterval     time.Duration
	fallbackInterval time.Duration
	logger           *slog.Logger

	events chan struct{}

	mu       sync.Mutex
	mode     string
	started  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
	notifier *fsnotify.Watcher
}

// New constructs an idle watcher for the feed at opts.Path.
func New(opts Options) *Watcher {
	path := filepath.Clean(opts.Path)
	fallback := opts.FallbackInterval
	if fallback <= 0 {
		fallback = DefaultFallbackInterval
	}
	return &Watcher{
		path:             path,
		dir:              filepath.Dir(path),
		pollInterval:     opts.PollInterval,
		fallbackInterval: fallback,
		logger:           logging.NewComponentLogger(opts.Logger, "watcher"),
		events:           make(chan struct{}, 1),
		mode:             ModeIdle,
	}
}

// Events returns the coalescing signal channel. It is closed by Close.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Mode reports how changes are currently being detected.
func (w *Watcher) Mode() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Start begins watching. When the feed directory cannot be watched the
// watcher logs a warning and falls back to polling; the feed is still read.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("watcher closed")
	}
	if w.started {
		return errors.New("watcher already started")
	}

	interval := w.pollInterval
	notifier, err := w.openNotifier()
	switch {
	case err != nil:
		logging.WarnWithContext(w.logger, "could not watch feed directory; polling instead", "watch_unavailable",
			logging.String(logging.FieldFeedPath, w.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "create the feed directory or raise fs.inotify.max_user_watches"),
			logging.String(logging.FieldImpact, "changes are detected by polling"),
		)
		if interval <= 0 {
			interval = w.fallbackInterval
		}
		w.mode = ModePoll
	case interval > 0:
		w.mode = ModeNotifyPoll
	default:
		w.mode = ModeNotify
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.notifier = notifier
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true

	go w.run(runCtx, notifier, interval)

	w.logger.Info("watching feed",
		logging.String(logging.FieldFeedPath, w.path),
		logging.String("mode", w.mode),
		logging.Duration("poll_interval", interval),
	)
	return nil
}

func (w *Watcher) openNotifier() (*fsnotify.Watcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := notifier.Add(w.dir); err != nil {
		_ = notifier.Close()
		return nil, err
	}
	return notifier, nil
}

// Close stops watching and closes the Events channel. It is safe to call
// more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	cancel, done, notifier := w.cancel, w.done, w.notifier
	w.mode = ModeIdle
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	var err error
	if notifier != nil {
		err = notifier.Close()
	}
	close(w.events)
	return err
}

func (w *Watcher) run(ctx context.Context, notifier *fsnotify.Watcher, interval time.Duration) {
	defer close(w.done)

	var (
		fsEvents <-chan fsnotify.Event
		fsErrors <-chan error
		ticker   *time.Ticker
		tick     <-chan time.Time
	)
	if notifier != nil {
		fsEvents = notifier.Events
		fsErrors = notifier.Errors
	}
	startPolling := func(d time.Duration) {
		if ticker != nil {
			return
		}
		ticker = time.NewTicker(d)
		tick = ticker.C
	}
	if interval > 0 {
		startPolling(interval)
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsEvents:
			if !ok {
				fsEvents, fsErrors = nil, nil
				startPolling(w.fallbackInterval)
				w.setMode(ModePoll)
				continue
			}
			if w.handleEvent(event) {
				startPolling(w.fallbackInterval)
				w.setMode(ModePoll)
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			logging.WarnWithContext(w.logger, "feed watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "events may have been dropped; a reload is scheduled"),
				logging.String(logging.FieldImpact, "none if the next reload succeeds"),
			)
			w.signal()
		case <-tick:
			w.signal()
		}
	}
}

// handleEvent signals for relevant activity on the feed itself. It reports
// true when the watched directory went away and notifications can no longer
// be trusted.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	name := filepath.Clean(event.Name)
	if name == w.dir && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		logging.WarnWithContext(w.logger, "feed directory removed; polling instead", "watch_dir_removed",
			logging.String("dir", w.dir),
			logging.String(logging.FieldErrorHint, "restart the daemon once the directory exists again"),
			logging.String(logging.FieldImpact, "changes are detected by polling"),
		)
		w.signal()
		return true
	}
	if name != w.path || event.Op&relevantOps == 0 {
		return false
	}
	w.logger.Debug("feed changed", logging.String("op", event.Op.String()))
	w.signal()
	return false
}

func (w *Watcher) signal() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}

func (w *Watcher) setMode(mode string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.mode = mode
	}
}
