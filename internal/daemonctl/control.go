package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"scriptview/internal/api"
	"scriptview/internal/archive"
	"scriptview/internal/config"
	"scriptview/internal/ipc"
	"scriptview/internal/preflight"
	"scriptview/internal/watcher"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
	Diagnostic bool
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// Launch starts a detached scriptview daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	proc := exec.Command(executablePath, launchArgs(opts)...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

func launchArgs(opts LaunchOptions) []string {
	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if opts.Diagnostic {
		args = append(args, "--diagnostic")
	}
	return args
}

// WaitForRunning polls the IPC socket until the daemon reports it is running.
func WaitForRunning(socketPath string, timeout time.Duration) (*ipc.StatusResponse, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := queryStatus(socketPath)
		if err == nil && status.Running {
			return status, nil
		}
		if err == nil {
			err = errors.New("daemon not running yet")
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers on socketPath.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := queryStatus(socketPath); err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForRunning(socketPath, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: status.PID}, nil
}

func queryStatus(socketPath string) (*ipc.StatusResponse, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.Status()
}

// WaitForShutdown waits for daemon IPC to disappear or report not-running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := queryStatus(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
			lastErr = err
		} else if !status.Running {
			return nil
		} else {
			lastErr = fmt.Errorf("daemon still running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	status, err := queryStatus(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return true, 0, err
	}
	return true, status.PID, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate requests daemon stop and force-kills the process if it is
// still alive after gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if status, statusErr := client.Status(); statusErr == nil && status != nil {
		pid = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp != nil && resp.Stopped}

	_ = WaitForShutdown(socketPath, gracePeriod)
	alive, livePID, aliveErr := ProcessInfo(socketPath)
	if aliveErr != nil || !alive {
		return result, nil
	}
	if livePID != 0 {
		pid = livePID
	}
	if cfg == nil {
		return result, fmt.Errorf("unable to locate daemon pid file without configuration")
	}
	killedPID, killErr := ForceKillProcess(cfg.PIDPath(), cfg.LockPath(), pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(socketPath string, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(socketPath, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}
	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// StatusSnapshot is everything `scriptview status` prints.
type StatusSnapshot struct {
	Daemon       api.DaemonStatus
	SystemChecks []api.StatusLine
	FeedChecks   []api.StatusLine
	// ArchivedEntries is -1 when the archive is disabled or unreadable.
	ArchivedEntries int
}

// BuildStatusSnapshot collects daemon status over IPC and falls back to
// reading the feed and archive directly when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{ArchivedEntries: -1}
	if status, err := queryStatus(socketPath); err == nil && status != nil {
		snapshot.Daemon = *status
	}

	snapshot.SystemChecks = BuildSystemChecks(cfg, snapshot.Daemon)
	snapshot.FeedChecks = BuildFeedChecks(cfg, snapshot.Daemon)

	if cfg.Archive.Enabled {
		snapshot.ArchivedEntries = archivedEntryCount(ctx, cfg.ArchivePath())
	}
	return snapshot, nil
}

// archivedEntryCount never creates the database: a missing file counts as an
// empty archive, and -1 reports an archive that exists but cannot be read.
func archivedEntryCount(ctx context.Context, path string) int {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0
		}
		return -1
	}
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	store, err := archive.OpenPath(path)
	if err != nil {
		return -1
	}
	defer store.Close()
	n, err := store.Count(queryCtx)
	if err != nil {
		return -1
	}
	return n
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// BuildSystemChecks resolves status lines describing the daemon itself.
func BuildSystemChecks(cfg *config.Config, status api.DaemonStatus) []api.StatusLine {
	lines := make([]api.StatusLine, 0, 4)
	if !status.Running {
		lines = append(lines, api.StatusLine{Label: "Scriptview", Severity: "warn", Detail: "Not running (run `scriptview start`)"})
	} else {
		lines = append(lines, api.StatusLine{Label: "Scriptview", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
		switch status.WatchMode {
		case watcher.ModeNotify:
			lines = append(lines, api.StatusLine{Label: "Change detection", Severity: "ok", Detail: "fsnotify"})
		case watcher.ModePoll:
			lines = append(lines, api.StatusLine{Label: "Change detection", Severity: "warn", Detail: "Polling (feed directory not watchable)"})
		default:
			lines = append(lines, api.StatusLine{Label: "Change detection", Severity: "info", Detail: status.WatchMode})
		}
		if status.APIAddress != "" {
			lines = append(lines, api.StatusLine{Label: "HTTP API", Severity: "ok", Detail: status.APIAddress})
		}
	}
	if !cfg.Archive.Enabled {
		lines = append(lines, api.StatusLine{Label: "History", Severity: "info", Detail: "Disabled"})
	} else {
		lines = append(lines, api.StatusLine{Label: "History", Severity: "ok", Detail: cfg.ArchivePath()})
	}
	return lines
}

// BuildFeedChecks resolves the feed and companion script lines. A running
// daemon's view wins over probing the filesystem from the CLI.
func BuildFeedChecks(cfg *config.Config, status api.DaemonStatus) []api.StatusLine {
	lines := make([]api.StatusLine, 0, 3)
	if status.Running {
		t := status.Transcript
		if t.FeedPresent {
			lines = append(lines, api.StatusLine{Label: "Subtitle feed", Severity: "ok", Detail: fmt.Sprintf("%s (last reload: %s)", t.FeedPath, outcomeOrUnknown(t.LastOutcome))})
		} else {
			lines = append(lines, api.StatusLine{Label: "Subtitle feed", Severity: "warn", Detail: api.MessageNoFeed})
		}
		lines = append(lines, scriptLine(t.ScriptPath, t.ScriptInstalled))
		detail := fmt.Sprintf("%d entries (version %d)", t.Entries, t.Version)
		if t.Message != "" {
			detail = t.Message
		}
		lines = append(lines, api.StatusLine{Label: "Transcript", Severity: "info", Detail: detail})
		return lines
	}

	probe := preflight.ProbeFeed(cfg.Paths.FeedPath)
	severity := "ok"
	if !probe.Exists || !probe.Readable {
		severity = "warn"
	}
	lines = append(lines, api.StatusLine{Label: "Subtitle feed", Severity: severity, Detail: probe.Detail()})

	script := preflight.CheckCompanionScript(cfg.Companion.ScriptPath)
	severity = "ok"
	if !script.Passed {
		severity = "warn"
	}
	lines = append(lines, api.StatusLine{Label: "Companion script", Severity: severity, Detail: script.Detail})

	if probe.Exists {
		result := preflight.CheckFeed(cfg.Paths.FeedPath, cfg.Feed.MaxBytes)
		severity = "ok"
		if !result.Passed {
			severity = "error"
		}
		lines = append(lines, api.StatusLine{Label: "Feed contents", Severity: severity, Detail: result.Detail})
	}
	return lines
}

func scriptLine(path string, installed bool) api.StatusLine {
	if installed {
		return api.StatusLine{Label: "Companion script", Severity: "ok", Detail: fmt.Sprintf("%s (installed)", path)}
	}
	if path == "" {
		return api.StatusLine{Label: "Companion script", Severity: "info", Detail: "not configured"}
	}
	return api.StatusLine{Label: "Companion script", Severity: "warn", Detail: fmt.Sprintf("%s (not installed)", path)}
}

func outcomeOrUnknown(outcome string) string {
	if outcome == "" {
		return "pending"
	}
	return outcome
}
