package reload_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scriptview/internal/feed"
	"scriptview/internal/logging"
	"scriptview/internal/metrics"
	"scriptview/internal/reload"
	"scriptview/internal/transcript"
)

func writeFeed(t *testing.T, path string, texts ...string) {
	t.Helper()
	var parts []string
	for i, text := range texts {
		parts = append(parts, fmt.Sprintf(`{"text":%q,"start_time":%d,"timestamp":%d}`, text, i, 1000+i))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("["+strings.Join(parts, ",")+"]"), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename feed: %v", err)
	}
}

type recordingSink struct {
	mu    sync.Mutex
	calls [][]feed.Entry
}

func (s *recordingSink) TranscriptReplaced(_ context.Context, entries []feed.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, entries)
}

func newReloader(t *testing.T, feedPath, scriptPath string, sinks ...reload.Sink) (*reload.Reloader, *transcript.Store) {
	t.Helper()
	store := transcript.NewStore()
	r := reload.NewReloader(reload.Options{
		FeedPath:   feedPath,
		MaxBytes:   1 << 20,
		ScriptPath: scriptPath,
		Store:      store,
		Metrics:    metrics.New(),
		Sinks:      sinks,
		Logger:     logging.NewNop(),
	})
	return r, store
}

func TestReloaderReplacesWithCollapsedTranscript(t *testing.T) {
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "feed.json")
	writeFeed(t, feedPath, "I", "I a", "I am", "Next subtitle")
	sink := &recordingSink{}
	r, store := newReloader(t, feedPath, "", sink)

	if got := r.Reload(context.Background()); got != reload.OutcomeReplaced {
		t.Fatalf("expected replaced, got %q", got)
	}
	snap := store.Snapshot()
	if len(snap) != 2 || snap[0].Text != "I am" || snap[1].Text != "Next subtitle" {
		t.Fatalf("unexpected transcript %+v", snap)
	}
	st := store.Status()
	if !st.FeedPresent || st.LastOutcome != string(reload.OutcomeReplaced) || st.Version != 1 {
		t.Fatalf("unexpected status %+v", st)
	}
	if len(sink.calls) != 1 || len(sink.calls[0]) != 2 {
		t.Fatalf("expected sink to receive collapsed transcript, got %+v", sink.calls)
	}
}

func TestReloaderKeepsTranscriptOnFailures(t *testing.T) {
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "feed.json")
	writeFeed(t, feedPath, "Hello", "World")
	r, store := newReloader(t, feedPath, "")
	r.Reload(context.Background())
	before := store.Snapshot()
	version := store.Status().Version

	if err := os.WriteFile(feedPath, []byte(`[{"text":"trunc`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := r.Reload(context.Background()); got != reload.OutcomeParseFailed {
		t.Fatalf("expected parse_failed, got %q", got)
	}
	assertUnchanged(t, store, before, version)
	if !store.Status().FeedPresent {
		t.Fatal("feed still exists after a parse failure")
	}

	if err := os.Remove(feedPath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := r.Reload(context.Background()); got != reload.OutcomeMissing {
		t.Fatalf("expected missing, got %q", got)
	}
	assertUnchanged(t, store, before, version)
	if store.Status().FeedPresent {
		t.Fatal("expected feed presence to flip to false")
	}

	if err := os.Mkdir(feedPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if got := r.Reload(context.Background()); got != reload.OutcomeUnreadable {
		t.Fatalf("expected unreadable, got %q", got)
	}
	assertUnchanged(t, store, before, version)
}

func assertUnchanged(t *testing.T, store *transcript.Store, before []feed.Entry, version uint64) {
	t.Helper()
	after := store.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("transcript changed: %+v -> %+v", before, after)
	}
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("transcript changed at %d: %+v -> %+v", i, before[i], after[i])
		}
	}
	if got := store.Status().Version; got != version {
		t.Fatalf("version changed from %d to %d", version, got)
	}
}

func TestReloaderTracksCompanionScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "subtitle-monitor.lua")
	r, store := newReloader(t, filepath.Join(dir, "feed.json"), script)

	r.Reload(context.Background())
	if store.Status().ScriptInstalled {
		t.Fatal("script should not be reported before it exists")
	}
	if err := os.WriteFile(script, []byte("-- lua"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	r.Reload(context.Background())
	if !store.Status().ScriptInstalled {
		t.Fatal("expected script to be reported once installed")
	}
}

type gatedRunner struct {
	mu       sync.Mutex
	triggers []string
	entered  chan struct{}
	gate     chan struct{}
	gateFrom int
}

func newGatedRunner(gateFrom int) *gatedRunner {
	return &gatedRunner{
		entered:  make(chan struct{}, 64),
		gate:     make(chan struct{}),
		gateFrom: gateFrom,
	}
}

func (g *gatedRunner) Reload(ctx context.Context) reload.Outcome {
	trigger, _ := logging.TriggerFromContext(ctx)
	g.mu.Lock()
	g.triggers = append(g.triggers, trigger)
	n := len(g.triggers)
	g.mu.Unlock()
	g.entered <- struct{}{}
	if g.gateFrom > 0 && n >= g.gateFrom {
		<-g.gate
	}
	return reload.OutcomeReplaced
}

func (g *gatedRunner) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.triggers...)
}

func waitEntered(t *testing.T, g *gatedRunner) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestLoopReloadsEagerlyAndStopsOnCancel(t *testing.T) {
	runner := newGatedRunner(0)
	loop := reload.NewLoop(runner, 0, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx, make(chan struct{})) }()

	waitEntered(t, runner)
	if calls := runner.calls(); len(calls) != 1 || calls[0] != reload.TriggerStartup {
		t.Fatalf("expected one startup reload, got %v", calls)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoopCoalescesSignalsDuringReload(t *testing.T) {
	runner := newGatedRunner(2)
	loop := reload.NewLoop(runner, 0, logging.NewNop())
	events := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx, events) }()

	waitEntered(t, runner)
	events <- struct{}{}
	waitEntered(t, runner)

	for i := 0; i < 100; i++ {
		select {
		case events <- struct{}{}:
		default:
		}
	}
	close(runner.gate)
	waitEntered(t, runner)

	time.Sleep(100 * time.Millisecond)
	calls := runner.calls()
	if len(calls) != 3 {
		t.Fatalf("expected startup + 2 coalesced reloads, got %v", calls)
	}
	if calls[1] != reload.TriggerWatch || calls[2] != reload.TriggerWatch {
		t.Fatalf("unexpected triggers %v", calls)
	}
}

func TestLoopClosedEventsEndsAfterFinalReload(t *testing.T) {
	runner := newGatedRunner(0)
	loop := reload.NewLoop(runner, 0, logging.NewNop())
	events := make(chan struct{}, 1)
	events <- struct{}{}
	close(events)

	if err := loop.Run(context.Background(), events); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls := runner.calls(); len(calls) < 2 {
		t.Fatalf("expected a reload after the startup reload, got %v", calls)
	}
	if _, err := loop.Reload(context.Background()); !errors.Is(err, reload.ErrStopped) {
		t.Fatalf("expected ErrStopped after Run returned, got %v", err)
	}
}

func TestLoopManualReloadWaitsForOutcome(t *testing.T) {
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "feed.json")
	r, store := newReloader(t, feedPath, "")
	loop := reload.NewLoop(r, 0, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx, make(chan struct{})) }()

	writeFeed(t, feedPath, "manual")
	reqCtx, reqCancel := context.WithTimeout(ctx, 2*time.Second)
	defer reqCancel()
	outcome, err := loop.Reload(reqCtx)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if outcome != reload.OutcomeReplaced {
		t.Fatalf("expected replaced, got %q", outcome)
	}
	if snap := store.Snapshot(); len(snap) != 1 || snap[0].Text != "manual" {
		t.Fatalf("unexpected transcript %+v", snap)
	}
}

func TestLoopTerminalStateMatchesLatestContent(t *testing.T) {
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "feed.json")
	r, store := newReloader(t, feedPath, "")
	loop := reload.NewLoop(r, 5*time.Millisecond, logging.NewNop())
	events := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx, events) }()

	signal := func() {
		select {
		case events <- struct{}{}:
		default:
		}
	}
	for i := 0; i < 200; i++ {
		writeFeed(t, feedPath, fmt.Sprintf("line %d", i))
		signal()
	}
	writeFeed(t, feedPath, "final", "final words")
	signal()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap := store.Snapshot()
		if len(snap) == 1 && snap[0].Text == "final words" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("transcript never converged, last snapshot %+v", store.Snapshot())
}
