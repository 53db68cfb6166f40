package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	OutputDir string `toml:"output_dir"`
}

// Queue contains lease and polling configuration for the job queue.
type Queue struct {
	LeaseWindowMs       int `toml:"lease_window_ms"`
	MinLeaseWindowMs    int `toml:"min_lease_window_ms"`
	MaxAttempts         int `toml:"max_attempts"`
	PollIntervalMs      int `toml:"poll_interval_ms"`
	HeartbeatIntervalMs int `toml:"heartbeat_interval_ms"`
}

// Sandbox contains configuration for the modeling code execution engine.
type Sandbox struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	// TrustedLibrary is the reserved specifier served by the built-in primitive library.
	TrustedLibrary string `toml:"trusted_library"`
	// Origin is the host origin local-bundle specifiers resolve against.
	Origin string `toml:"origin"`
	// BundlePrefix is the path prefix that marks a local-bundle specifier.
	BundlePrefix string `toml:"bundle_prefix"`
	// BundleDir, when set, serves local-bundle modules from disk instead of the origin.
	BundleDir           string `toml:"bundle_dir"`
	AllowRemote         bool   `toml:"allow_remote"`
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
	MaxModuleBytes      int64  `toml:"max_module_bytes"`
}

// Generator providers.
const (
	ProviderCommand = "command"
	ProviderLLM     = "llm"
)

// Generator selects and bounds the prompt-to-code generator.
type Generator struct {
	// Provider is "command" (external process) or "llm" (chat completion API).
	Provider       string   `toml:"provider"`
	Command        []string `toml:"command"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// LLM contains chat completion connection settings for the llm provider.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Notifications contains ntfy delivery settings for job outcomes.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifyCompleted       bool   `toml:"notify_completed"`
	NotifyFailed          bool   `toml:"notify_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for modelforge.
//
// Configuration sections by subsystem:
//   - Paths: queue database, logs, and result snapshots
//   - Queue: lease window, retry cap, and worker polling
//   - Sandbox: execution timeout and module resolution
//   - Generator: prompt-to-code provider (external command or LLM)
//   - LLM: chat completion settings for the llm provider
//   - Notifications: ntfy job outcome delivery
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Sandbox       Sandbox       `toml:"sandbox"`
	Generator     Generator     `toml:"generator"`
	LLM           LLM           `toml:"llm"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/modelforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("modelforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for worker operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the location of the SQLite queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LeaseWindow returns the configured lease window as a duration.
func (c *Config) LeaseWindow() time.Duration {
	return time.Duration(c.Queue.LeaseWindowMs) * time.Millisecond
}

// MinLeaseWindow returns the floor applied to requested lease windows.
func (c *Config) MinLeaseWindow() time.Duration {
	return time.Duration(c.Queue.MinLeaseWindowMs) * time.Millisecond
}

// PollInterval returns the idle wait between claim attempts.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Queue.PollIntervalMs) * time.Millisecond
}

// HeartbeatInterval returns how often a running job refreshes its lease.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Queue.HeartbeatIntervalMs) * time.Millisecond
}

// SandboxTimeout returns the wall-clock bound for one evaluation.
func (c *Config) SandboxTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSeconds) * time.Second
}

// FetchTimeout returns the per-module fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Sandbox.FetchTimeoutSeconds) * time.Second
}

// GeneratorTimeout returns the bound for a single external generator call.
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

// LLMTimeout returns the per-request HTTP timeout of the llm provider.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// NotificationTimeout returns the per-request ntfy timeout.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
