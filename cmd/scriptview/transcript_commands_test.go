package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"scriptview/internal/api"
	"scriptview/internal/testsupport"
)

func TestShowPrintsCollapsedTail(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFeed(t, env.cfg.Paths.FeedPath, testsupport.Lines("Hel", "Hello", "World"))
	env.waitForTotal(t, 2)

	out, _, err := runCLI(t, []string{"show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "[1.0s] Hello\n")
	requireContains(t, out, "[2.0s] World\n")
	requireNotContains(t, out, "Hel\n")

	out, _, err = runCLI(t, []string{"show", "-n", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show -n 1: %v", err)
	}
	if out != "[2.0s] World\n" {
		t.Fatalf("unexpected show -n 1 output %q", out)
	}

	out, _, err = runCLI(t, []string{"show", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var resp api.TranscriptResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode show --json: %v", err)
	}
	if resp.Total != 2 || len(resp.Entries) != 2 || resp.Entries[0].Text != "Hello" {
		t.Fatalf("unexpected json response %+v", resp)
	}
}

func TestShowExplainsEmptyTranscript(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, api.MessageInstallScript)
}

func TestClearAndReload(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFeed(t, env.cfg.Paths.FeedPath, testsupport.Lines("one", "two"))
	env.waitForTotal(t, 2)
	// Let trailing watcher events for the write settle before clearing.
	time.Sleep(200 * time.Millisecond)

	out, _, err := runCLI(t, []string{"clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	requireContains(t, out, "Transcript cleared")
	if total := env.daemon.Store().Status().Entries; total != 0 {
		t.Fatalf("expected empty transcript after clear, got %d", total)
	}

	out, _, err = runCLI(t, []string{"reload"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	requireContains(t, out, "Reload outcome: replaced")
	env.waitForTotal(t, 2)
}

func TestCommandsFailWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI())
	configPath := writeTestConfig(t, cfg)
	_, _, err := runCLI(t, []string{"show"}, cfg.SocketPath(), configPath)
	if err == nil {
		t.Fatal("expected show to fail without a daemon")
	}
	requireContains(t, err.Error(), "scriptview start")
}

func TestShowLimit(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		want  *int
		isNil bool
	}{
		{name: "default", args: nil, isNil: true},
		{name: "explicit", args: []string{"-n", "5"}, want: intPtr(5)},
		{name: "clamped high", args: []string{"-n", "500"}, want: intPtr(50)},
		{name: "clamped low", args: []string{"-n", "0"}, want: intPtr(1)},
		{name: "all", args: []string{"--all", "-n", "3"}, want: intPtr(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var count int
			var all bool
			cmd := &cobra.Command{Use: "show"}
			cmd.Flags().IntVarP(&count, "count", "n", 0, "")
			cmd.Flags().BoolVar(&all, "all", false, "")
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			got := showLimit(cmd, count, all)
			if tt.isNil {
				if got != nil {
					t.Fatalf("expected nil limit, got %d", *got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Fatalf("showLimit = %v, want %d", got, *tt.want)
			}
		})
	}
}

func intPtr(v int) *int { return &v }
