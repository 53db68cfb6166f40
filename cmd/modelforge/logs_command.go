package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modelforge/internal/config"
	"modelforge/internal/logs"
	"modelforge/internal/queue"
	"modelforge/internal/workflow"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs [queue-id]",
		Short: "Show the worker log, or one job's log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.CurrentPath(cfg.Paths.LogDir)
			if len(args) == 1 {
				if path, err = jobLogPath(ctx, cmd, cfg, args[0]); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if !follow {
				result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines})
				if err != nil {
					return err
				}
				if len(result.Lines) == 0 {
					fmt.Fprintf(out, "No log output at %s\n", path)
					return nil
				}
				printLines(out, result.Lines)
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return logs.Follow(followCtx, path, lines, func(batch []string) error {
				printLines(out, batch)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}

func jobLogPath(ctx *commandContext, cmd *cobra.Command, cfg *config.Config, queueID string) (string, error) {
	var path string
	err := ctx.withStore(func(store *queue.Store) error {
		item, err := store.Get(cmd.Context(), queueID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("queue item %s not found", queueID)
		}
		path = workflow.NewJobLogger(cfg.Paths.LogDir).Path(item.ProjectID, item.ID)
		return nil
	})
	return path, err
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
