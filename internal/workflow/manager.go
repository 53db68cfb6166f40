package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"modelforge/internal/config"
	"modelforge/internal/logging"
	"modelforge/internal/notifications"
	"modelforge/internal/queue"
	"modelforge/internal/sandbox"
)

// Evaluator runs modeling code. *sandbox.Host satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, params map[string]any) sandbox.Outcome
	Close()
}

// Manager coordinates generation lanes over the queue.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	generator Generator
	logger    *slog.Logger

	pollInterval     time.Duration
	generatorTimeout time.Duration
	heartbeat        *HeartbeatMonitor
	jobLogs          *JobLogger
	notifier         notifications.Service
	newEvaluator     func(logger *slog.Logger) Evaluator
	now              func() time.Time

	mu        sync.RWMutex
	running   bool
	lastErr   error
	lastItem  *queue.Item
	completed int
	failed    int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithEvaluatorFactory replaces the sandbox host each lane creates.
func WithEvaluatorFactory(fn func(logger *slog.Logger) Evaluator) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newEvaluator = fn
		}
	}
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(svc notifications.Service) ManagerOption {
	return func(m *Manager) {
		if svc != nil {
			m.notifier = svc
		}
	}
}

// WithPollInterval overrides the idle wait between claim attempts.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, generator Generator, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	m := &Manager{
		cfg:              cfg,
		store:            store,
		generator:        generator,
		logger:           logger,
		pollInterval:     cfg.PollInterval(),
		generatorTimeout: cfg.GeneratorTimeout(),
		heartbeat:        NewHeartbeatMonitor(store, logger, cfg.HeartbeatInterval()),
		jobLogs:          NewJobLogger(cfg.Paths.LogDir),
		notifier:         notifications.NewService(cfg),
		now:              time.Now,
	}
	m.newEvaluator = func(l *slog.Logger) Evaluator {
		return sandbox.NewHost(sandbox.OptionsFromConfig(cfg, l), cfg.SandboxTimeout())
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
