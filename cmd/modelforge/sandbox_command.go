package main

import (
	"github.com/spf13/cobra"

	"modelforge/internal/logging"
	"modelforge/internal/sandbox"
)

func newSandboxCommand(ctx *commandContext) *cobra.Command {
	sandboxCmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Sandbox runtime utilities",
	}
	sandboxCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Speak the sandbox protocol as JSON lines on stdin/stdout",
		Long: "Serve runs one sandbox context in this process. It writes a ready frame, then answers " +
			"each evaluate frame read from stdin. The parent owns the timeout and kills the process on expiry.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewComponentLogger(ctx.stderrLogger(cmd), "sandbox")
			return sandbox.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), sandbox.OptionsFromConfig(cfg, logger))
		},
	})
	return sandboxCmd
}
