package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trove/internal/daemonctl"
	"trove/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the trove daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			default:
				if result.PID > 0 {
					fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
				} else {
					fmt.Fprintln(stdout, "Daemon started")
				}
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the trove daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time, killed process %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the trove daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Killed unresponsive daemon process %d\n", result.Stop.PID)
				} else {
					fmt.Fprintln(stdout, "Daemon stopped")
				}
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check whether the trove daemon is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Ping()
				if err != nil {
					return err
				}
				if !resp.Alive {
					return errors.New("daemon responded but reported not alive")
				}
				fmt.Fprintf(stdout, "Daemon alive (version %s)\n", resp.Version)
				return nil
			})
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and index status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			var status *ipc.StatusResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				status = resp
				return nil
			})
			if err != nil {
				if statusJSON {
					return writeJSON(cmd, map[string]any{"running": false})
				}
				colorize := shouldColorize(stdout)
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Trove", statusWarn, "Not running (run `trove start`)", colorize))
				return nil
			}

			if statusJSON {
				return writeJSON(cmd, status)
			}
			printStatus(stdout, status)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd, pingCmd}
}

func printStatus(stdout io.Writer, status *ipc.StatusResponse) {
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status.Running {
		detail := fmt.Sprintf("Running (pid %d, up %s)", status.PID, status.Uptime)
		fmt.Fprintln(stdout, renderStatusLine("Trove", statusOK, detail, colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Trove", statusWarn, "Not running (run `trove start`)", colorize))
	}
	if status.WatcherActive {
		fmt.Fprintln(stdout, renderStatusLine("Watcher", statusOK, "Watching "+status.WatchRoot, colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Watcher", statusWarn, "Inactive", colorize))
	}
	if status.Indexing {
		fmt.Fprintln(stdout, renderStatusLine("Indexing", statusOK, "Scan in progress", colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Indexing", statusInfo, "Idle", colorize))
	}
	if status.Degraded {
		fmt.Fprintln(stdout, renderStatusLine("Storage", statusWarn, "Degraded (see daemon logs)", colorize))
	}

	fmt.Fprintln(stdout)
	for _, line := range renderSectionHeader("Index", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprint(stdout, renderIndexTable(
		status.FilesIndexed,
		status.TotalBytes,
		lastIndexedLabel(status.LastIndexedAt),
	))
	fmt.Fprintln(stdout)
}

func lastIndexedLabel(value string) string {
	if value == "" {
		return "never"
	}
	return value
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.configFlag != nil {
		if path := *ctx.configFlag; path != "" {
			opts.ConfigPath = path
		}
	}
	return opts
}
