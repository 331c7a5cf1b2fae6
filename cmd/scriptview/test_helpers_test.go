package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scriptview/internal/config"
	"scriptview/internal/daemon"
	"scriptview/internal/ipc"
	"scriptview/internal/logging"
	"scriptview/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	return newCLITestEnv(t, testsupport.WithoutAPI())
}

// newCLITestEnv starts an in-process daemon with the archive enabled and an
// IPC server on a private socket.
func newCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv(config.FeedPathEnv, "")
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithArchive()}, opts...)...)
	configPath := writeTestConfig(t, cfg)
	history := testsupport.MustOpenArchive(t, cfg)

	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, daemon.Options{SessionID: "cli-test-session", History: history})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.StateDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, cancel, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	env := &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

// writeTestConfig persists cfg so commands that load configuration see the
// same paths as the in-process daemon.
func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	content := fmt.Sprintf(`[paths]
feed_path = %q
state_dir = %q
api_bind = %q

[feed]
min_reload_interval_ms = 0

[companion]
script_path = %q

[archive]
enabled = %t
`,
		cfg.Paths.FeedPath,
		cfg.Paths.StateDir,
		cfg.Paths.APIBind,
		cfg.Companion.ScriptPath,
		cfg.Archive.Enabled,
	)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func (env *cliTestEnv) waitForTotal(t *testing.T, total int) {
	t.Helper()
	zero := 0
	waitFor(t, 3*time.Second, func() bool {
		return env.daemon.Transcript(&zero).Total == total
	})
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
