package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	if err := c.normalizeSandbox(); err != nil {
		return err
	}
	c.normalizeGenerator()
	c.normalizeLLM()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.MinLeaseWindowMs <= 0 {
		c.Queue.MinLeaseWindowMs = defaultMinLeaseWindowMs
	}
	if c.Queue.LeaseWindowMs == 0 {
		c.Queue.LeaseWindowMs = defaultLeaseWindowMs
	}
	if c.Queue.PollIntervalMs == 0 {
		c.Queue.PollIntervalMs = defaultPollIntervalMs
	}
	if c.Queue.HeartbeatIntervalMs == 0 {
		c.Queue.HeartbeatIntervalMs = defaultHeartbeatIntervalMs
	}
}

func (c *Config) normalizeSandbox() error {
	c.Sandbox.TrustedLibrary = strings.TrimSpace(c.Sandbox.TrustedLibrary)
	if c.Sandbox.TrustedLibrary == "" {
		c.Sandbox.TrustedLibrary = defaultTrustedLibrary
	}
	c.Sandbox.Origin = strings.TrimRight(strings.TrimSpace(c.Sandbox.Origin), "/")
	if c.Sandbox.Origin == "" {
		c.Sandbox.Origin = defaultOrigin
	}
	prefix := strings.TrimSpace(c.Sandbox.BundlePrefix)
	if prefix == "" {
		prefix = defaultBundlePrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	c.Sandbox.BundlePrefix = prefix
	if strings.TrimSpace(c.Sandbox.BundleDir) != "" {
		var err error
		if c.Sandbox.BundleDir, err = expandPath(c.Sandbox.BundleDir); err != nil {
			return fmt.Errorf("sandbox.bundle_dir: %w", err)
		}
	}
	if c.Sandbox.TimeoutSeconds == 0 {
		c.Sandbox.TimeoutSeconds = defaultSandboxTimeoutSeconds
	}
	if c.Sandbox.FetchTimeoutSeconds == 0 {
		c.Sandbox.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.Sandbox.MaxModuleBytes == 0 {
		c.Sandbox.MaxModuleBytes = defaultMaxModuleBytes
	}
	return nil
}

func (c *Config) normalizeGenerator() {
	command := c.Generator.Command[:0]
	for _, part := range c.Generator.Command {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	c.Generator.Command = command
	if c.Generator.TimeoutSeconds == 0 {
		c.Generator.TimeoutSeconds = defaultGeneratorTimeout
	}
	c.Generator.Provider = strings.ToLower(strings.TrimSpace(c.Generator.Provider))
	if c.Generator.Provider == "" {
		c.Generator.Provider = defaultGeneratorProvider
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("MODELFORGE_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
