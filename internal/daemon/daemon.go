package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"scriptview/internal/api"
	"scriptview/internal/archive"
	"scriptview/internal/config"
	"scriptview/internal/logging"
	"scriptview/internal/metrics"
	"scriptview/internal/reload"
	"scriptview/internal/transcript"
	"scriptview/internal/watcher"
)

// ErrNotRunning is returned by operations that need the reload loop.
var ErrNotRunning = errors.New("daemon is not running")

const flushTimeout = 5 * time.Second

// Daemon owns the transcript pipeline: it holds the single-instance lock,
// runs the feed watcher and reload loop, and serves readers.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	sessionID string
	store     *transcript.Store
	metrics   *metrics.Metrics
	history   *archive.Store
	service   *api.TranscriptService

	lockPath string
	lock     *flock.Flock

	// lifecycle serializes Start and Stop; mu guards the fields below.
	lifecycle sync.Mutex
	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	group     *errgroup.Group
	watcher   *watcher.Watcher
	loop      *reload.Loop
	recorder  *archive.Recorder
	api       *apiServer
}

// Options carries optional collaborators.
type Options struct {
	SessionID string
	// History enables the archive sink. The daemon closes it in Close.
	History *archive.Store
	Metrics *metrics.Metrics
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	store := transcript.NewStore()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		sessionID: opts.SessionID,
		store:     store,
		metrics:   m,
		history:   opts.History,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	var history api.HistoryReader
	if opts.History != nil {
		history = opts.History
	}
	d.service = api.NewTranscriptService(store, history, cfg.Display.Count)
	return d, nil
}

// Start acquires the daemon lock, then launches the watcher, the reload loop
// and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	if d.Running() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scriptview daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	release := func() {
		cancel()
		_ = d.lock.Unlock()
	}

	var sinks []reload.Sink
	var recorder *archive.Recorder
	if d.history != nil {
		recorder, err = d.history.NewRecorder(runCtx, d.sessionID, d.cfg.Paths.FeedPath, d.metrics, d.logger)
		if err != nil {
			logging.WarnWithContext(d.logger, "history archive unavailable", "archive_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check "+d.history.Path()),
				logging.String(logging.FieldImpact, "this session will not be archived"),
			)
		} else {
			sinks = append(sinks, recorder)
		}
	}

	reloader := reload.NewReloader(reload.Options{
		FeedPath:   d.cfg.Paths.FeedPath,
		MaxBytes:   d.cfg.Feed.MaxBytes,
		ScriptPath: d.cfg.Companion.ScriptPath,
		Store:      d.store,
		Metrics:    d.metrics,
		Sinks:      sinks,
		Logger:     d.logger,
	})
	loop := reload.NewLoop(reloader, d.cfg.MinReloadInterval(), d.logger)
	w := watcher.New(watcher.Options{
		Path:         d.cfg.Paths.FeedPath,
		PollInterval: d.cfg.PollInterval(),
		Logger:       d.logger,
	})

	apiSrv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		release()
		return err
	}
	if err := apiSrv.start(runCtx); err != nil {
		release()
		return err
	}

	if err := w.Start(runCtx); err != nil {
		apiSrv.stop()
		release()
		return fmt.Errorf("start watcher: %w", err)
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		err := loop.Run(groupCtx, w.Events())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if apiSrv != nil {
		group.Go(apiSrv.serve)
		group.Go(func() error {
			<-groupCtx.Done()
			apiSrv.stop()
			return nil
		})
	}

	d.mu.Lock()
	d.cancel = cancel
	d.group = group
	d.watcher = w
	d.loop = loop
	d.recorder = recorder
	d.api = apiSrv
	d.running = true
	d.mu.Unlock()

	d.logger.Info("scriptview daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldFeedPath, d.cfg.Paths.FeedPath),
		logging.String("watch_mode", w.Mode()),
		logging.Bool("archive_enabled", recorder != nil),
	)
	return nil
}

// Stop stops the pipeline, flushes the archive and releases the lock. The
// transcript stays readable after Stop.
func (d *Daemon) Stop() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel, group, w, recorder := d.cancel, d.group, d.watcher, d.recorder
	d.cancel = nil
	d.group = nil
	d.watcher = nil
	d.loop = nil
	d.recorder = nil
	d.api = nil
	d.running = false
	d.mu.Unlock()

	cancel()
	if err := group.Wait(); err != nil {
		d.logger.Warn("daemon pipeline ended with error",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reload_loop_failed"),
			logging.String(logging.FieldImpact, "transcript or API stopped before shutdown"),
			logging.String(logging.FieldErrorHint, "see earlier reload warnings"),
		)
	}
	if err := w.Close(); err != nil {
		d.logger.Debug("watcher close", logging.Error(err))
	}
	if recorder != nil {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), flushTimeout)
		recorder.Flush(flushCtx)
		cancelFlush()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldImpact, "next daemon start may report a running instance"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.logger.Info("scriptview daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and releases the history store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Store exposes the live transcript.
func (d *Daemon) Store() *transcript.Store {
	return d.store
}

// MetricsHandler serves the Prometheus registry.
func (d *Daemon) MetricsHandler() http.Handler {
	return d.metrics.Handler()
}

// APIAddress returns the bound HTTP address, or "" when the API is off.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) api.DaemonStatus {
	d.mu.Lock()
	running := d.running
	mode := watcher.ModeIdle
	if d.watcher != nil {
		mode = d.watcher.Mode()
	}
	address := d.api.address()
	d.mu.Unlock()

	status := api.DaemonStatus{
		Running:      running,
		PID:          os.Getpid(),
		SessionID:    d.sessionID,
		LockFilePath: d.lockPath,
		APIAddress:   address,
		WatchMode:    mode,
		DisplayCount: d.cfg.Display.Count,
		Transcript:   api.FromStoreStatus(d.store.Status(), d.cfg.Paths.FeedPath, d.cfg.Companion.ScriptPath),
	}
	if d.history != nil {
		status.ArchivePath = d.history.Path()
	}
	return status
}

// Transcript returns the tail of the transcript. A nil limit uses display.count.
func (d *Daemon) Transcript(limit *int) api.TranscriptResponse {
	return d.service.Transcript(limit)
}

// Clear empties the transcript. The next successful reload repopulates it.
func (d *Daemon) Clear() api.ClearResponse {
	d.store.Clear()
	d.metrics.SetTranscriptCleared()
	version := d.store.Status().Version
	d.logger.Info("transcript cleared",
		logging.String(logging.FieldEventType, "transcript_clear"),
		logging.Int64("version", int64(version)),
	)
	return api.ClearResponse{Version: version}
}

// Reload forces a reload through the loop and waits for its outcome.
func (d *Daemon) Reload(ctx context.Context) (api.ReloadResponse, error) {
	d.mu.Lock()
	loop := d.loop
	d.mu.Unlock()
	if loop == nil {
		return api.ReloadResponse{}, ErrNotRunning
	}
	outcome, err := loop.Reload(ctx)
	if err != nil {
		if errors.Is(err, reload.ErrStopped) {
			return api.ReloadResponse{}, ErrNotRunning
		}
		return api.ReloadResponse{}, err
	}
	return api.ReloadResponse{Outcome: string(outcome)}, nil
}

// History queries the archive.
func (d *Daemon) History(ctx context.Context, query string, limit int) (api.HistoryResponse, error) {
	return d.service.History(ctx, query, limit)
}
