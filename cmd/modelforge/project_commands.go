package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"modelforge/internal/queue"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Register and list projects",
	}
	projectCmd.AddCommand(newProjectRegisterCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	return projectCmd
}

func newProjectRegisterCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var name string

	cmd := &cobra.Command{
		Use:   "register <project-id>",
		Short: "Create or update the ownership record for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(owner) == "" {
				return errors.New("--owner is required")
			}
			return ctx.withStore(func(store *queue.Store) error {
				if err := store.RegisterProject(cmd.Context(), args[0], owner, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %s registered to %s\n", args[0], owner)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner id allowed to enqueue prompts")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				projects, err := store.Projects(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, projects)
				}
				out := cmd.OutOrStdout()
				if len(projects) == 0 {
					fmt.Fprintln(out, "No projects registered")
					return nil
				}
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{p.ID, p.OwnerID, p.Name, formatTime(p.CreatedAt)})
				}
				fmt.Fprint(out, renderTable(out, []string{"Project", "Owner", "Name", "Created"}, rows, nil))
				return nil
			})
		},
	}
}
