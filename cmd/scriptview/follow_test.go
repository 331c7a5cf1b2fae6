package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"scriptview/internal/api"
	"scriptview/internal/config"
	"scriptview/internal/testsupport"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollowPrintsSettledEntries(t *testing.T) {
	env := newCLITestEnv(t)
	cfg := *env.cfg
	cfg.Paths.APIBind = env.daemon.APIAddress()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- followTranscript(ctx, &out, &cfg, nil) }()

	testsupport.WriteFeed(t, env.cfg.Paths.FeedPath, testsupport.Lines("first", "second", "thi"))
	waitFor(t, 3*time.Second, func() bool {
		return strings.Contains(out.String(), "second")
	})
	testsupport.WriteFeed(t, env.cfg.Paths.FeedPath, testsupport.Lines("first", "second", "thi", "third"))
	time.Sleep(200 * time.Millisecond)
	if got := out.String(); got != "[0.0s] first\n[1.0s] second\n" {
		t.Fatalf("unexpected output before flush %q", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("followTranscript: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("follow did not stop")
	}
	if got := out.String(); got != "[0.0s] first\n[1.0s] second\n[3.0s] third\n" {
		t.Fatalf("unexpected output after flush %q", got)
	}
}

func TestStreamURL(t *testing.T) {
	limit := 5
	tests := []struct {
		name    string
		paths   config.Paths
		limit   *int
		want    string
		wantErr bool
	}{
		{name: "disabled", paths: config.Paths{}, wantErr: true},
		{name: "loopback", paths: config.Paths{APIBind: "127.0.0.1:7488"}, want: "ws://127.0.0.1:7488/api/transcript/stream"},
		{name: "wildcard", paths: config.Paths{APIBind: "0.0.0.0:9000"}, limit: &limit, want: "ws://127.0.0.1:9000/api/transcript/stream?limit=5"},
		{name: "token", paths: config.Paths{APIBind: ":9000", APIToken: "s3cret"}, want: "ws://127.0.0.1:9000/api/transcript/stream?token=s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := streamURL(&config.Config{Paths: tt.paths}, tt.limit)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("streamURL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("streamURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSettledPrinterSkipsDuplicates(t *testing.T) {
	var out bytes.Buffer
	p := newSettledPrinter(&out)
	p.update([]api.TranscriptEntry{{Text: "a", StartTime: 1}, {Text: "b", StartTime: 2}})
	p.update([]api.TranscriptEntry{{Text: "a", StartTime: 1}, {Text: "bc", StartTime: 2}, {Text: "d", StartTime: 3}})
	p.update(nil)
	p.flush()
	if got := out.String(); got != "[1.0s] a\n[2.0s] bc\n" {
		t.Fatalf("unexpected output %q", got)
	}
}
