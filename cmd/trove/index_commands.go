package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"trove/internal/ipc"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var rebuild bool
	indexCmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Start a background scan of the watch root or the given path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			root := ""
			if len(args) == 1 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve path %q: %w", args[0], err)
				}
				root = abs
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StartIndexing(root, rebuild)
				if err != nil {
					return err
				}
				if !resp.Started {
					return fmt.Errorf("indexing not started: %s", resp.Message)
				}
				fmt.Fprintln(stdout, "Indexing started")
				return nil
			})
		},
	}
	indexCmd.Flags().BoolVar(&rebuild, "rebuild", false, "Clear the index and re-scan every file")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Cancel an in-flight scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StopIndexing()
				if err != nil {
					return err
				}
				if !resp.Stopped {
					return fmt.Errorf("indexing not stopped: %s", resp.Message)
				}
				fmt.Fprintln(stdout, "Indexing stopped")
				return nil
			})
		},
	}
	indexCmd.AddCommand(stopCmd)

	return indexCmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var statsJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.IndexStats()
				if err != nil {
					return err
				}
				if statsJSON {
					return writeJSON(cmd, resp)
				}
				fmt.Fprint(stdout, renderIndexTable(
					resp.FilesIndexed,
					resp.TotalBytes,
					lastIndexedLabel(resp.LastIndexedAt),
				))
				fmt.Fprintln(stdout)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&statsJSON, "json", false, "Emit stats as JSON")
	return cmd
}
