package preflight

import (
	"context"
	"strings"

	"modelforge/internal/config"
	"modelforge/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the local checks for cfg. Network checks are left to
// callers that want them.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}
	if strings.TrimSpace(cfg.Sandbox.BundleDir) != "" {
		results = append(results, CheckDirectoryReadable("Bundle directory", cfg.Sandbox.BundleDir))
	}
	results = append(results, CheckGenerator(cfg))
	results = append(results, CheckSandbox(ctx, cfg))
	return results
}

// CheckGenerator reports whether the configured generator is usable without
// contacting it: the command resolves on PATH, or the llm settings are set.
func CheckGenerator(cfg *config.Config) Result {
	if cfg.Generator.Provider == config.ProviderLLM {
		const name = "Generator llm"
		switch {
		case cfg.LLM.APIKey == "":
			return Result{Name: name, Detail: "llm.api_key not set"}
		case cfg.LLM.Model == "":
			return Result{Name: name, Detail: "llm.model not set"}
		}
		return Result{Name: name, Passed: true, Detail: cfg.LLM.Model + " via " + cfg.LLM.BaseURL}
	}
	status := deps.Check(deps.GeneratorRequirement(cfg.Generator.Command))
	if status.Command == "" {
		return Result{Name: status.Name, Detail: "not configured (generator.command)"}
	}
	return Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
