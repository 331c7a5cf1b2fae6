package preflight

import (
	"context"

	"scriptview/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the readiness checks for the given config. A failed check
// is advisory: the daemon still starts and keeps watching for the feed.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFeedDirectory(cfg.Paths.FeedPath),
		CheckFeed(cfg.Paths.FeedPath, cfg.Feed.MaxBytes),
		CheckCompanionScript(cfg.Companion.ScriptPath),
	}

	if cfg.Paths.APIBind != "" {
		results = append(results, CheckAPI(ctx, cfg.Paths.APIBind, cfg.Paths.APIToken))
	}

	return results
}
