package testsupport

import (
	"path/filepath"
	"testing"

	"modelforge/internal/config"
)

// ConfigOption mutates a test config after the temp layout is applied.
type ConfigOption func(*config.Config)

// NewConfig returns a config whose data, log and result directories live in
// a fresh t.TempDir. Remote modules are off and evaluations time out after 5s.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.OutputDir = filepath.Join(root, "results")
	cfg.Sandbox.AllowRemote = false
	cfg.Sandbox.TimeoutSeconds = 5
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxAttempts caps how often a stale job is reclaimed.
func WithMaxAttempts(n int) ConfigOption {
	return func(cfg *config.Config) { cfg.Queue.MaxAttempts = n }
}

// BaseDir is the temp root NewConfig laid the directories under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
