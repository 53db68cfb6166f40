package main

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"modelforge/internal/config"
	"modelforge/internal/daemonrun"
)

// projectsEnv lists project ids when no --project flag is given, separated
// by commas or whitespace.
const projectsEnv = "MODELFORGE_PROJECTS"

func newCommand() *cobra.Command {
	var configPath string
	var projects []string
	var logLevel string
	var development bool
	var drain bool

	cmd := &cobra.Command{
		Use:           "modelforged",
		Short:         "modelforge generation worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(strings.TrimSpace(configPath))
			if err != nil {
				return err
			}
			ids := resolveProjects(projects, os.Getenv(projectsEnv))
			if len(ids) == 0 {
				return errors.New("no projects: pass --project or set " + projectsEnv)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Projects:    ids,
				LogLevel:    logLevel,
				Development: development,
				Drain:       drain,
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringSliceVarP(&projects, "project", "p", nil, "Project id to serve (repeatable)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")
	cmd.Flags().BoolVar(&drain, "drain", false, "Process queued items once and exit")
	return cmd
}

func resolveProjects(flagValues []string, env string) []string {
	if len(flagValues) > 0 {
		return flagValues
	}
	return strings.FieldsFunc(env, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
