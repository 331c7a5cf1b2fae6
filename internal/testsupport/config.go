package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"scriptview/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The feed directory exists but the feed itself does not. The API binds an
// ephemeral port, reloads are not throttled, and the archive stays disabled
// unless WithArchive is given.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.FeedPath = filepath.Join(base, "feed", "mpv-subtitles.json")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Companion.ScriptPath = filepath.Join(base, "scripts", "subtitle-monitor.lua")
	cfgVal.Feed.MinReloadIntervalMS = 0
	cfgVal.Archive.Enabled = false
	if err := os.MkdirAll(filepath.Dir(cfgVal.Paths.FeedPath), 0o755); err != nil {
		t.Fatalf("mkdir feed dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithArchive enables the history database.
func WithArchive() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archive.Enabled = true
	}
}

// WithoutAPI disables the HTTP API.
func WithoutAPI() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIBind = ""
	}
}

// WithAPIToken requires a bearer token on the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithDisplayCount overrides the default reader limit.
func WithDisplayCount(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Display.Count = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
