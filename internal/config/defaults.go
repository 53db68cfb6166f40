package config

const (
	defaultDataDir               = "~/.local/share/modelforge"
	defaultLogDir                = "~/.local/share/modelforge/logs"
	defaultOutputDir             = "~/.local/share/modelforge/results"
	defaultLeaseWindowMs         = 15000
	defaultMinLeaseWindowMs      = 1000
	defaultPollIntervalMs        = 1000
	defaultHeartbeatIntervalMs   = 5000
	defaultSandboxTimeoutSeconds = 30
	defaultTrustedLibrary        = "@jscad/modeling"
	defaultOrigin                = "http://localhost:3000"
	defaultBundlePrefix          = "/libs/"
	defaultFetchTimeoutSeconds   = 10
	defaultMaxModuleBytes        = 2 << 20
	defaultGeneratorTimeout      = 120
	defaultGeneratorProvider     = ProviderCommand
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMTitle              = "modelforge"
	defaultLLMTimeoutSeconds     = 60
	defaultLLMTemperature        = 0.2
	defaultNtfyTimeoutSeconds    = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			OutputDir: defaultOutputDir,
		},
		Queue: Queue{
			LeaseWindowMs:       defaultLeaseWindowMs,
			MinLeaseWindowMs:    defaultMinLeaseWindowMs,
			PollIntervalMs:      defaultPollIntervalMs,
			HeartbeatIntervalMs: defaultHeartbeatIntervalMs,
		},
		Sandbox: Sandbox{
			TimeoutSeconds:      defaultSandboxTimeoutSeconds,
			TrustedLibrary:      defaultTrustedLibrary,
			Origin:              defaultOrigin,
			BundlePrefix:        defaultBundlePrefix,
			AllowRemote:         true,
			FetchTimeoutSeconds: defaultFetchTimeoutSeconds,
			MaxModuleBytes:      defaultMaxModuleBytes,
		},
		Generator: Generator{
			Provider:       defaultGeneratorProvider,
			TimeoutSeconds: defaultGeneratorTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Title:          defaultLLMTitle,
			Temperature:    defaultLLMTemperature,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
			NotifyCompleted:       true,
			NotifyFailed:          true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
