package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"modelforge/internal/config"
	"modelforge/internal/logging"
	"modelforge/internal/sandbox"
	"modelforge/internal/services/llm"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, ok string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, ok)}
}

// CheckOrigin verifies that the host origin serving local-bundle modules
// answers. Any status below 500 counts as reachable.
func CheckOrigin(ctx context.Context, origin, prefix string) Result {
	const name = "Bundle origin"

	base := strings.TrimRight(strings.TrimSpace(origin), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing origin"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base+prefix, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%d)", base, resp.StatusCode)}
}

const smokeModel = `
const { cube } = require('%s').primitives;
module.exports = { main: () => cube({ size: 1 }) };`

// CheckSandbox evaluates a one-cube model in a fresh sandbox context to
// confirm the trusted library loads.
func CheckSandbox(ctx context.Context, cfg *config.Config) Result {
	const name = "Sandbox"

	sc, err := sandbox.NewContext(sandbox.OptionsFromConfig(cfg, logging.NewNop()))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	stop := context.AfterFunc(checkCtx, func() { sc.Interrupt("preflight timeout") })
	defer stop()

	eval, info := sc.Evaluate(checkCtx, fmt.Sprintf(smokeModel, cfg.Sandbox.TrustedLibrary), nil)
	if info != nil {
		return Result{Name: name, Detail: info.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s ok (%d polygons)", cfg.Sandbox.TrustedLibrary, eval.Metadata.Polygons)}
}

// CheckLLM sends one short completion with the configured llm settings.
func CheckLLM(ctx context.Context, cfg *config.Config) Result {
	const name = "LLM endpoint"
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(ctx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "model " + client.Model() + " answered"}
}
