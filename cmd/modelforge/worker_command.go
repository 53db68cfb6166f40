package main

import (
	"errors"

	"github.com/spf13/cobra"

	"modelforge/internal/daemonrun"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var projects []string
	var drain bool
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run generation lanes for one or more projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(projects) == 0 {
				return errors.New("at least one --project is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Projects:    projects,
				LogLevel:    logLevel,
				Development: development,
				Drain:       drain,
			})
		},
	}
	cmd.Flags().StringSliceVarP(&projects, "project", "p", nil, "Project id to serve (repeatable)")
	cmd.Flags().BoolVar(&drain, "drain", false, "Process queued items once and exit")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")
	return cmd
}
