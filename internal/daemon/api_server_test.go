package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"scriptview/internal/api"
	"scriptview/internal/logging"
	"scriptview/internal/testsupport"
)

func startTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	d, err := New(cfg, logging.NewNop(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testsupport.WriteFeed(t, cfg.Paths.FeedPath, testsupport.Lines("Hel", "Hello", "World"))
	deadline := time.Now().Add(5 * time.Second)
	for d.Transcript(nil).Total != 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for transcript")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return d, "http://" + d.APIAddress()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAPIServerTranscriptAndStatus(t *testing.T) {
	_, base := startTestDaemon(t, testsupport.WithDisplayCount(1))

	resp, err := http.Get(base + "/api/transcript")
	if err != nil {
		t.Fatalf("GET transcript: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", resp.StatusCode)
	}
	tail := decode[api.TranscriptResponse](t, resp)
	if tail.Total != 2 || len(tail.Entries) != 1 || tail.Entries[0].Text != "World" {
		t.Fatalf("expected display.count tail, got %+v", tail)
	}

	resp, err = http.Get(base + "/api/transcript?limit=0")
	if err != nil {
		t.Fatalf("GET transcript: %v", err)
	}
	all := decode[api.TranscriptResponse](t, resp)
	if len(all.Entries) != 2 || all.Entries[0].Text != "Hello" {
		t.Fatalf("expected full transcript, got %+v", all)
	}

	resp, err = http.Get(base + "/api/transcript?limit=-3")
	if err != nil {
		t.Fatalf("GET transcript: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	status := decode[api.DaemonStatus](t, resp)
	if !status.Running || !status.Transcript.FeedPresent || status.Transcript.Entries != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestAPIServerClearReloadAndMethods(t *testing.T) {
	_, base := startTestDaemon(t)

	resp, err := http.Get(base + "/api/transcript/clear")
	if err != nil {
		t.Fatalf("GET clear: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET clear, got %d", resp.StatusCode)
	}

	resp, err = http.Post(base+"/api/transcript/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("POST clear: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for clear, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Post(base+"/api/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reload: %v", err)
	}
	reloaded := decode[api.ReloadResponse](t, resp)
	if reloaded.Outcome != "replaced" {
		t.Fatalf("expected replaced, got %+v", reloaded)
	}

	resp, err = http.Get(base + "/api/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 with archive disabled, got %d", resp.StatusCode)
	}
}

func TestAPIServerMetrics(t *testing.T) {
	_, base := startTestDaemon(t)
	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "scriptview_reloads_total") {
		t.Fatalf("expected reload counter in metrics output")
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	_, base := startTestDaemon(t, testsupport.WithAPIToken("secret"))

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/api/status?token=secret")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", resp.StatusCode)
	}
}

func TestAPIServerStreamPushesChanges(t *testing.T) {
	d, base := startTestDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/api/transcript/stream?limit=0"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() api.TranscriptResponse {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var frame struct {
			Event string                 `json:"event"`
			Data  api.TranscriptResponse `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame.Event != api.StreamEventTranscript {
			t.Fatalf("unexpected event %q", frame.Event)
		}
		return frame.Data
	}

	first := read()
	if first.Total != 2 {
		t.Fatalf("expected initial frame with 2 entries, got %+v", first)
	}

	cleared := d.Clear()
	for {
		frame := read()
		if frame.Version >= cleared.Version {
			if frame.Version == cleared.Version && frame.Total != 0 {
				t.Fatalf("expected cleared frame, got %+v", frame)
			}
			break
		}
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		isNil   bool
		wantErr bool
	}{
		{"", 0, true, false},
		{"0", 0, false, false},
		{"25", 25, false, false},
		{"-1", 0, false, true},
		{"abc", 0, false, true},
	}
	for _, tt := range tests {
		got, err := parseLimit(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseLimit(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseLimit(%q): %v", tt.raw, err)
		}
		if tt.isNil != (got == nil) {
			t.Fatalf("parseLimit(%q) nil mismatch: %v", tt.raw, got)
		}
		if got != nil && *got != tt.want {
			t.Fatalf("parseLimit(%q) = %d, want %d", tt.raw, *got, tt.want)
		}
	}
}

func TestAPIServerShutsDownWithRunContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + d.APIAddress()
	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()

	cancel()
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := client.Get(base + "/api/status")
		if err != nil {
			break
		}
		resp.Body.Close()
		if time.Now().After(deadline) {
			t.Fatal("api server still serving after the run context ended")
		}
		time.Sleep(10 * time.Millisecond)
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon stopped")
	}
}
