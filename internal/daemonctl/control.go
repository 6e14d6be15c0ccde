// Package daemonctl orchestrates the daemon process from the CLI: launching
// it detached, waiting for its socket, and stopping it with a forced kill as
// the last resort.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"trove/internal/config"
	"trove/internal/ipc"
	"trove/internal/state"
)

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// StartState classifies the outcome of an EnsureStarted call.
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

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	Acknowledged bool
	ForcedKill   bool
	PID          int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch starts a detached troved process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon process unless one is already serving the
// socket, and reports which of the two happened.
func EnsureStarted(cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	socketPath := cfg.SocketPath()

	if client, err := ipc.Dial(socketPath); err == nil {
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr == nil && status.Running {
			return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
		}
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	client, err := WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return StartResult{State: StartStateStarted, Launched: true}, nil
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: status.PID}, nil
}

// ProcessInfo reports whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	return true, status.PID, nil
}

// WaitForShutdown waits for daemon IPC to disappear or report not-running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return nil
		}
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr == nil && !status.Running {
			return nil
		}
		if statusErr != nil {
			lastErr = statusErr
		} else {
			lastErr = errors.New("daemon still running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// StopAndTerminate requests shutdown over IPC and force-kills the process if
// it is still alive after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	socketPath := cfg.SocketPath()

	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	pid := 0
	if status, statusErr := client.Status(); statusErr == nil {
		pid = status.PID
	}
	resp, err := client.Shutdown()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, Acknowledged: resp != nil && resp.OK}

	_ = WaitForShutdown(socketPath, gracePeriod)
	alive, livePID, aliveErr := ProcessInfo(socketPath)
	if aliveErr != nil {
		alive = false
	}
	if !alive {
		return result, nil
	}

	if livePID != 0 {
		pid = livePID
	}
	killedPID, killErr := ForceKillProcess(cfg, pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(cfg, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans marker and
// lock files.
func ForceKillProcess(cfg *config.Config, fallbackPID int) (int, error) {
	marker := state.NewMarker(cfg.PIDPath())
	pid := marker.Read()
	if pid == 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", cfg.PIDPath())
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
	if err := marker.Remove(); err != nil {
		return 0, err
	}
	_ = os.Remove(cfg.LockPath())
	return pid, nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
