// Package daemonrun wires the daemon process together: logging, stores,
// orchestrator, and the IPC server, then blocks until a signal or a shutdown
// request ends the run.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"trove/internal/config"
	"trove/internal/daemon"
	"trove/internal/index"
	"trove/internal/ipc"
	"trove/internal/logging"
	"trove/internal/state"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the trove daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("troved-%s.log", runID))
	sessionID := uuid.NewString()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		SessionID:        sessionID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update troved.log link: %v\n", err)
	}

	indexStore, err := index.Open(cfg)
	if err != nil {
		logger.Error("open index store", logging.Error(err))
		return err
	}
	defer indexStore.Close()

	stateStore, err := state.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return err
	}
	defer stateStore.Close()

	d, err := daemon.New(cfg, indexStore, stateStore, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running instance and state directory access"))
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("signal received, shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := d.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", logging.Error(err))
		}
	case <-d.Done():
		// Shutdown arrived over IPC.
	}
	return nil
}

// ensureCurrentLogPointer keeps a stable troved.log name pointing at the
// newest run log.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "troved.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
