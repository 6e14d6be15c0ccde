package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trove/internal/daemonrun"
)

// newDaemonRunCommand runs the daemon in the foreground. `trove start`
// launches this command detached; running it directly is useful under a
// process supervisor or while debugging.
func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Run the trove daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}
