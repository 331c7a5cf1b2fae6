package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"scriptview/internal/daemon"
	"scriptview/internal/ipc"
	"scriptview/internal/logging"
	"scriptview/internal/testsupport"
)

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI(), testsupport.WithArchive(), testsupport.WithDisplayCount(2))
	history := testsupport.MustOpenArchive(t, cfg)
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, daemon.Options{SessionID: "ipc-test", History: history})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var stopped atomic.Bool
	socket := filepath.Join(cfg.Paths.StateDir, "scriptview.sock")
	srv, err := ipc.NewServer(ctx, socket, d, func() { stopped.Store(true) }, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.Transcript.FeedPresent {
		t.Fatal("feed should not exist yet")
	}

	testsupport.WriteFeed(t, cfg.Paths.FeedPath, testsupport.Lines("a", "b", "c", "d"))
	reload, err := client.Reload()
	if err != nil {
		t.Fatalf("Reload RPC failed: %v", err)
	}
	if reload.Outcome != "replaced" {
		t.Fatalf("expected replaced, got %q", reload.Outcome)
	}

	tail, err := client.Transcript(nil)
	if err != nil {
		t.Fatalf("Transcript RPC failed: %v", err)
	}
	if tail.Total != 4 || len(tail.Entries) != 2 || tail.Entries[1].Text != "d" {
		t.Fatalf("expected display.count tail of 2, got %+v", tail)
	}
	all := 0
	full, err := client.Transcript(&all)
	if err != nil {
		t.Fatalf("Transcript RPC failed: %v", err)
	}
	if len(full.Entries) != 4 {
		t.Fatalf("expected all entries, got %d", len(full.Entries))
	}
	negative := -1
	if _, err := client.Transcript(&negative); err == nil {
		t.Fatal("expected negative limit to be rejected")
	}

	time.Sleep(100 * time.Millisecond)
	cleared, err := client.Clear()
	if err != nil {
		t.Fatalf("Clear RPC failed: %v", err)
	}
	if cleared.Version == 0 {
		t.Fatal("expected clear to bump the version")
	}

	hist, err := client.History("", 10)
	if err != nil {
		t.Fatalf("History RPC failed: %v", err)
	}
	if len(hist.Records) != 3 {
		t.Fatalf("expected 3 settled entries archived, got %+v", hist.Records)
	}

	stop, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stop.Stopped {
		t.Fatal("expected Stopped=true")
	}
	deadline := time.Now().Add(2 * time.Second)
	for !stopped.Load() {
		if time.Now().After(deadline) {
			t.Fatal("stop callback was not invoked")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDialMissingSocket(t *testing.T) {
	if _, err := ipc.Dial(filepath.Join(t.TempDir(), "missing.sock")); err == nil {
		t.Fatal("expected dial to fail without a server")
	}
}
