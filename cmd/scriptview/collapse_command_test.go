package main

import (
	"path/filepath"
	"testing"

	"scriptview/internal/testsupport"
)

func TestCollapseFeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	testsupport.WriteFeed(t, path, testsupport.Lines("I", "I a", "I am", "Next subtitle"))

	out, errOut, err := runCLI(t, []string{"collapse", path}, "", "")
	if err != nil {
		t.Fatalf("collapse: %v", err)
	}
	want := "[2.0s] I am\n[3.0s] Next subtitle\n"
	if out != want {
		t.Fatalf("collapse output = %q, want %q", out, want)
	}
	requireContains(t, errOut, "4 feed entries collapsed to 2")
}

func TestCollapseRejectsInvalidFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	testsupport.WriteRaw(t, path, []byte(`{"text":"not an array"}`))

	if _, _, err := runCLI(t, []string{"collapse", path}, "", ""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCollapseUsesConfiguredFeed(t *testing.T) {
	t.Setenv("SCRIPTVIEW_FEED_PATH", "")
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI())
	configPath := writeTestConfig(t, cfg)
	testsupport.WriteFeed(t, cfg.Paths.FeedPath, testsupport.Lines("H", "He", "Hello"))

	out, _, err := runCLI(t, []string{"collapse", "--json"}, cfg.SocketPath(), configPath)
	if err != nil {
		t.Fatalf("collapse: %v", err)
	}
	requireContains(t, out, `"text": "Hello"`)
	requireContains(t, out, `"total": 1`)
}
