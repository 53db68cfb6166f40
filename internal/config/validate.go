package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateSandbox(); err != nil {
		return err
	}
	if err := c.validateGenerator(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.LeaseWindowMs < 0 {
		return errors.New("queue.lease_window_ms must be positive")
	}
	if c.Queue.MaxAttempts < 0 {
		return errors.New("queue.max_attempts must be 0 (unlimited) or positive")
	}
	if c.Queue.PollIntervalMs < 0 {
		return errors.New("queue.poll_interval_ms must be positive")
	}
	if c.Queue.HeartbeatIntervalMs < 0 {
		return errors.New("queue.heartbeat_interval_ms must be positive")
	}
	if c.Queue.HeartbeatIntervalMs >= c.Queue.LeaseWindowMs {
		return fmt.Errorf("queue.heartbeat_interval_ms (%d) must be shorter than queue.lease_window_ms (%d)",
			c.Queue.HeartbeatIntervalMs, c.Queue.LeaseWindowMs)
	}
	return nil
}

func (c *Config) validateSandbox() error {
	if c.Sandbox.TimeoutSeconds < 0 {
		return errors.New("sandbox.timeout_seconds must be positive")
	}
	if c.Sandbox.FetchTimeoutSeconds < 0 {
		return errors.New("sandbox.fetch_timeout_seconds must be positive")
	}
	if c.Sandbox.MaxModuleBytes < 0 {
		return errors.New("sandbox.max_module_bytes must be positive")
	}
	if strings.ContainsAny(c.Sandbox.TrustedLibrary, " \t./") && !strings.HasPrefix(c.Sandbox.TrustedLibrary, "@") {
		return fmt.Errorf("sandbox.trusted_library %q must be a bare package name", c.Sandbox.TrustedLibrary)
	}
	origin, err := url.Parse(c.Sandbox.Origin)
	if err != nil {
		return fmt.Errorf("sandbox.origin: %w", err)
	}
	if origin.Scheme != "http" && origin.Scheme != "https" {
		return fmt.Errorf("sandbox.origin %q must use http or https", c.Sandbox.Origin)
	}
	if c.Sandbox.BundlePrefix == "/" {
		return errors.New("sandbox.bundle_prefix must not be the root path")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	topic, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil {
		return fmt.Errorf("notifications.ntfy_topic: %w", err)
	}
	if (topic.Scheme != "http" && topic.Scheme != "https") || topic.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) topic URL", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateGenerator() error {
	if c.Generator.TimeoutSeconds < 0 {
		return errors.New("generator.timeout_seconds must be positive")
	}
	switch c.Generator.Provider {
	case ProviderCommand:
	case ProviderLLM:
		if c.LLM.APIKey == "" {
			return errors.New("llm.api_key must be set when generator.provider is llm (or set MODELFORGE_LLM_API_KEY)")
		}
		if c.LLM.Model == "" {
			return errors.New("llm.model must be set when generator.provider is llm")
		}
		if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
			return fmt.Errorf("llm.temperature %v must be between 0 and 2", c.LLM.Temperature)
		}
	default:
		return fmt.Errorf("generator.provider %q must be %q or %q", c.Generator.Provider, ProviderCommand, ProviderLLM)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}
