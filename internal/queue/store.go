package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"modelforge/internal/config"
	"modelforge/internal/logging"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	now    func() time.Time
	logger *slog.Logger

	leaseWindow    time.Duration
	minLeaseWindow time.Duration
	maxAttempts    int
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for every timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger for lease reclaim events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logging.NewComponentLogger(logger, "queue")
	}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// DefaultLeaseWindow applies when ClaimNext is given no window.
	DefaultLeaseWindow = 15 * time.Second
	// MinLeaseWindow is the floor every lease window is clamped to.
	MinLeaseWindow = time.Second
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// withTx runs fn inside one immediate transaction, retrying the whole unit
// when SQLite reports the database busy. fn must not keep state between runs.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// dsn applies pragmas through the connection string so every pooled
// connection gets them, and makes BEGIN take the write lock up front.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{
		db:             db,
		path:           dbPath,
		now:            time.Now,
		logger:         logging.NewNop(),
		leaseWindow:    cfg.LeaseWindow(),
		minLeaseWindow: cfg.MinLeaseWindow(),
		maxAttempts:    cfg.Queue.MaxAttempts,
	}
	if store.leaseWindow <= 0 {
		store.leaseWindow = DefaultLeaseWindow
	}
	if store.minLeaseWindow <= 0 {
		store.minLeaseWindow = MinLeaseWindow
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// LeaseWindow is the window applied when ClaimNext is called without one.
func (s *Store) LeaseWindow() time.Duration { return s.leaseWindow }

func (s *Store) clock() time.Time {
	return s.now().UTC()
}
