package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"modelforge/internal/config"
	"modelforge/internal/logging"
	"modelforge/internal/queue"
	"modelforge/internal/workflow"
)

// ErrAlreadyRunning reports that another worker holds the data directory lock.
var ErrAlreadyRunning = errors.New("another modelforge worker is already running")

// Daemon coordinates the background workflow and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	projects []string
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Projects     []string
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// LockPath returns the lock file guarding cfg's data directory.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "modelforged.lock")
}

// New constructs a daemon serving projects.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, projects []string) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := LockPath(cfg)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		projects: append([]string(nil), projects...),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

func (d *Daemon) acquire() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

func (d *Daemon) release() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Start acquires the lock and runs the workflow lanes in the background.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.acquire(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.runErr = nil
	d.running.Store(true)

	go func(done chan struct{}) {
		defer close(done)
		err := d.workflow.Run(runCtx, d.projects)
		if err != nil {
			d.logger.Error("workflow stopped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "workflow_stopped"),
				logging.String(logging.FieldErrorHint, "check project ids and queue database access"),
			)
		}
		d.mu.Lock()
		d.runErr = err
		d.mu.Unlock()
		d.running.Store(false)
	}(d.done)

	d.logger.Info("modelforge daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("projects", len(d.projects)),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Done is closed when the background workflow returns. It is nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err returns the error the background workflow stopped with, if any.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runErr
}

// Stop cancels the workflow, waits for its lanes and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	d.release()
	d.logger.Info("modelforge daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Drain holds the lock while every project's queue is processed once, then
// returns.
func (d *Daemon) Drain(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()
	return d.workflow.Drain(ctx, d.projects)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Projects:     append([]string(nil), d.projects...),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
