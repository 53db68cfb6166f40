package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"modelforge/internal/config"
	"modelforge/internal/preflight"
	"modelforge/internal/queue"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment a worker needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if strings.TrimSpace(cfg.Sandbox.Origin) != "" && cfg.Sandbox.AllowRemote {
				results = append(results, preflight.CheckOrigin(cmd.Context(), cfg.Sandbox.Origin, cfg.Sandbox.BundlePrefix))
			}
			if cfg.Generator.Provider == config.ProviderLLM && cfg.LLM.APIKey != "" {
				results = append(results, preflight.CheckLLM(cmd.Context(), cfg))
			}
			results = append(results, checkQueueDatabase(cmd, ctx))

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Name, passLabel(r.Passed), r.Detail})
				}
				fmt.Fprint(out, renderTable(out, []string{"Check", "Result", "Detail"}, rows, nil))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}

func checkQueueDatabase(cmd *cobra.Command, ctx *commandContext) preflight.Result {
	result := preflight.Result{Name: "Queue database"}
	err := ctx.withStore(func(store *queue.Store) error {
		health, err := store.CheckHealth(cmd.Context())
		if err != nil {
			return err
		}
		switch {
		case health.Error != "":
			result.Detail = health.Error
		case len(health.MissingTables) > 0:
			result.Detail = "missing tables: " + strings.Join(health.MissingTables, ", ")
		case !health.IntegrityCheck:
			result.Detail = "integrity check failed"
		default:
			result.Passed = true
			result.Detail = fmt.Sprintf("%s (schema v%d, %d items)", health.DBPath, health.SchemaVersion, health.TotalItems)
		}
		return nil
	})
	if err != nil {
		result.Detail = err.Error()
	}
	return result
}

func passLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
