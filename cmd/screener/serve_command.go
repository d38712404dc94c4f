package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screener/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the screener daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}
