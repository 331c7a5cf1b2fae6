package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"scriptview/internal/feed"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFeedDirectory verifies that the directory holding the feed can be
// listed, which the watcher needs to see the feed appear.
func CheckFeedDirectory(feedPath string) Result {
	const name = "Feed directory"
	dir := filepath.Dir(feedPath)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist; changes will be polled)", dir)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", dir, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", dir)}
	}
	if err := unix.Access(dir, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", dir, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (watchable)", dir)}
}

// CheckFeed loads the feed once and reports how many entries it holds.
func CheckFeed(feedPath string, maxBytes int64) Result {
	const name = "Subtitle feed"
	entries, err := feed.Load(feedPath, maxBytes)
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d entries)", feedPath, len(entries))}
	case errors.Is(err, feed.ErrResourceMissing):
		return Result{Name: name, Detail: fmt.Sprintf("%s (not present; maybe mpv isn't running?)", feedPath)}
	case errors.Is(err, feed.ErrParse):
		return Result{Name: name, Detail: fmt.Sprintf("%s (invalid JSON: %v)", feedPath, err)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("%s (unreadable: %v)", feedPath, err)}
	}
}

// CheckCompanionScript reports whether the mpv companion script is installed.
func CheckCompanionScript(scriptPath string) Result {
	const name = "Companion script"
	if strings.TrimSpace(scriptPath) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(scriptPath)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (not installed)", scriptPath)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", scriptPath)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (installed)", scriptPath)}
}

// CheckAPI verifies that the daemon's HTTP API answers and accepts the token.
func CheckAPI(ctx context.Context, bind, token string) Result {
	const name = "HTTP API"

	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if base == "" {
		return Result{Name: name, Detail: "disabled"}
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("status check failed (%v)", err)}
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not reachable at %s", bind)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable at %s", bind)}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (check paths.api_token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("status check failed (%d)", resp.StatusCode)}
	}
}
