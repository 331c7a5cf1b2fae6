package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scriptview/internal/watcher"
)

func waitSignal(t *testing.T, events <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case _, ok := <-events:
		if !ok {
			t.Fatal("events channel closed unexpectedly")
		}
	case <-time.After(timeout):
		t.Fatal("timed out waiting for change signal")
	}
}

func drain(events <-chan struct{}) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func TestWatcherSignalsOnFeedChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mpv-subtitles.json")

	w := watcher.New(watcher.Options{Path: path})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if w.Mode() != watcher.ModeNotify {
		t.Fatalf("expected notify mode, got %q", w.Mode())
	}

	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitSignal(t, w.Events(), 2*time.Second)

	drain(w.Events())
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitSignal(t, w.Events(), 2*time.Second)
}

func TestWatcherObservesAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.json")

	w := watcher.New(watcher.Options{Path: path})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	tmp := filepath.Join(dir, "feed.json.tmp")
	if err := os.WriteFile(tmp, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
	waitSignal(t, w.Events(), 2*time.Second)
}

func TestWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	w := watcher.New(watcher.Options{Path: filepath.Join(dir, "feed.json")})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-w.Events():
		t.Fatal("unexpected signal for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.json")
	w := watcher.New(watcher.Options{Path: path})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	for i := 0; i < 50; i++ {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	waitSignal(t, w.Events(), 2*time.Second)
	if pending := len(w.Events()); pending > 1 {
		t.Fatalf("expected at most one pending signal, got %d", pending)
	}
}

func TestWatcherFallsBackToPolling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "feed.json")
	w := watcher.New(watcher.Options{Path: path, FallbackInterval: 20 * time.Millisecond})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if w.Mode() != watcher.ModePoll {
		t.Fatalf("expected poll mode, got %q", w.Mode())
	}
	waitSignal(t, w.Events(), time.Second)
	waitSignal(t, w.Events(), time.Second)
}

func TestWatcherPollIntervalAddsTicks(t *testing.T) {
	w := watcher.New(watcher.Options{Path: filepath.Join(t.TempDir(), "feed.json"), PollInterval: 20 * time.Millisecond})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if w.Mode() != watcher.ModeNotifyPoll {
		t.Fatalf("expected notify+poll mode, got %q", w.Mode())
	}
	waitSignal(t, w.Events(), time.Second)
}

func TestWatcherCloseIsIdempotentAndClosesEvents(t *testing.T) {
	w := watcher.New(watcher.Options{Path: filepath.Join(t.TempDir(), "feed.json")})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	drain(w.Events())
	if _, ok := <-w.Events(); ok {
		t.Fatal("expected events channel to be closed")
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected Start after Close to fail")
	}
}
