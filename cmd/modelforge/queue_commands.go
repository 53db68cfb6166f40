package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"modelforge/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drive the generation queue",
	}

	queueCmd.AddCommand(newQueueEnqueueCommand(ctx))
	queueCmd.AddCommand(newQueueClaimCommand(ctx))
	queueCmd.AddCommand(newQueueHeartbeatCommand(ctx))
	queueCmd.AddCommand(newQueueCompleteCommand(ctx))
	queueCmd.AddCommand(newQueueFailCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueMessagesCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueEnqueueCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "enqueue <project-id> <prompt>",
		Short: "Record a prompt and queue it for generation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args[1:], " ")
			return ctx.withStore(func(store *queue.Store) error {
				res, err := store.Enqueue(cmd.Context(), args[0], owner, prompt)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (message %s)\n", res.QueueID, res.MessageID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner id of the project")
	return cmd
}

func newQueueClaimCommand(ctx *commandContext) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "claim <project-id>",
		Short: "Lease the next queued item of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				claim, err := store.ClaimNext(cmd.Context(), args[0], window)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, claim)
				}
				out := cmd.OutOrStdout()
				if claim == nil {
					fmt.Fprintln(out, "Nothing to claim")
					return nil
				}
				fmt.Fprint(out, renderPairs(out, [][2]string{
					{"Queue ID", claim.QueueID},
					{"Attempt", fmt.Sprintf("%d", claim.Attempts)},
					{"Lease expires", formatTime(claim.Lease.ExpiresAt)},
					{"Prompt", claim.Prompt},
				}))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&window, "window", 0, "Lease window (default from config)")
	return cmd
}

func newQueueHeartbeatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat <queue-id>",
		Short: "Extend the lease of a running item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				if err := store.Heartbeat(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Heartbeat recorded for %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueCompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <queue-id>",
		Short: "Mark an item completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				if err := store.Complete(cmd.Context(), args[0]); err != nil {
					return err
				}
				return printItemStatus(cmd, store, args[0])
			})
		},
	}
}

func newQueueFailCommand(ctx *commandContext) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "fail <queue-id>",
		Short: "Mark an item failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				if err := store.Fail(cmd.Context(), args[0], message); err != nil {
					return err
				}
				return printItemStatus(cmd, store, args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Failure message stored on the item")
	return cmd
}

// printItemStatus reports the item's status after a transition; terminal
// items keep their first outcome, so this may differ from the request.
func printItemStatus(cmd *cobra.Command, store *queue.Store, id string) error {
	item, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("queue item %s not found", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Item %s is %s\n", id, item.Status)
	return nil
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show queued and running counts for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				summary, err := store.ListStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderPairs(out, [][2]string{
					{"Queued", fmt.Sprintf("%d", summary.QueuedCount)},
					{"Running", fmt.Sprintf("%d", summary.RunningCount)},
					{"Active prompt", summary.ActivePrompt},
					{"Next prompt", summary.NextQueuedPrompt},
				}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List queue items of a project in FIFO order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				items, err := store.List(cmd.Context(), args[0], filter...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Status", "Attempts", "Created", "Prompt", "Error"},
					buildQueueListRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (queued, running, completed, failed)")
	return cmd
}

func parseStatuses(values []string) ([]queue.Status, error) {
	out := make([]queue.Status, 0, len(values))
	for _, v := range values {
		status := queue.Status(strings.ToLower(strings.TrimSpace(v)))
		switch status {
		case queue.StatusQueued, queue.StatusRunning, queue.StatusCompleted, queue.StatusFailed:
			out = append(out, status)
		default:
			return nil, fmt.Errorf("unknown status %q", v)
		}
	}
	return out, nil
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <queue-id>",
		Short: "Show one queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				item, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("queue item %s not found", args[0])
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, item)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderPairs(out, [][2]string{
					{"ID", item.ID},
					{"Project", item.ProjectID},
					{"Owner", item.OwnerID},
					{"Status", formatStatusLabel(string(item.Status))},
					{"Attempts", fmt.Sprintf("%d", item.Attempts)},
					{"Created", formatTime(item.CreatedAt)},
					{"Started", formatOptionalTime(item.StartedAt)},
					{"Heartbeat", formatOptionalTime(item.HeartbeatAt)},
					{"Completed", formatOptionalTime(item.CompletedAt)},
					{"Prompt", item.Prompt},
					{"Error", item.Error},
				}))
				return nil
			})
		},
	}
}

func newQueueMessagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "messages <project-id>",
		Short: "Show the project transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				messages, err := store.Messages(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, messages)
				}
				out := cmd.OutOrStdout()
				if len(messages) == 0 {
					fmt.Fprintln(out, "No messages")
					return nil
				}
				fmt.Fprint(out, renderTable(out, []string{"Time", "Role", "Content"}, buildMessageRows(messages), nil))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear <project-id>",
		Short: "Delete every message and queue item of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			return ctx.withStore(func(store *queue.Store) error {
				if err := store.ClearAll(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared project %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show item counts by status across all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				rows := buildQueueStatsRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(out, []string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, health)
				}
				out := cmd.OutOrStdout()
				missing := "none"
				if len(health.MissingTables) > 0 {
					missing = strings.Join(health.MissingTables, ", ")
				}
				pairs := [][2]string{
					{"Database path", health.DBPath},
					{"Database exists", yesNo(health.DatabaseExists)},
					{"Readable", yesNo(health.DatabaseReadable)},
					{"Schema version", fmt.Sprintf("%d", health.SchemaVersion)},
					{"Missing tables", missing},
					{"Integrity check", yesNo(health.IntegrityCheck)},
					{"Total items", fmt.Sprintf("%d", health.TotalItems)},
				}
				if health.Error != "" {
					pairs = append(pairs, [2]string{"Error", health.Error})
				}
				fmt.Fprint(out, renderPairs(out, pairs))
				return nil
			})
		},
	}
}
