package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modelforge/internal/logging"
	"modelforge/internal/services"
)

// ClaimNext grants a lease on the project's oldest queued item. window is
// clamped to the configured minimum; zero selects the default.
//
// Running items are scanned oldest first. Each one whose lease has expired
// is put back in the queue (or failed once it has used MaxAttempts). The
// first running item with a live lease ends the scan and ClaimNext returns
// nil: a healthy job blocks new claims, so a project runs one job at a time.
func (s *Store) ClaimNext(ctx context.Context, projectID string, window time.Duration) (*Claim, error) {
	window = s.clampWindow(window)
	var claim *Claim
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		claim = nil
		now := s.clock()
		nowMs := toMillis(now)

		running, err := queryItems(ctx, tx,
			"SELECT "+itemColumns+" FROM queue_items WHERE project_id = ? AND status = ? ORDER BY created_at, rowid",
			projectID, StatusRunning)
		if err != nil {
			return fmt.Errorf("scan running items: %w", err)
		}
		for _, item := range running {
			lease := leaseFor(item, window)
			if !IsExpired(lease, now) {
				return nil
			}
			if err := s.reclaim(ctx, tx, item, lease, nowMs); err != nil {
				return err
			}
		}

		row := tx.QueryRowContext(ctx,
			"SELECT "+itemColumns+" FROM queue_items WHERE project_id = ? AND status = ? ORDER BY created_at, rowid LIMIT 1",
			projectID, StatusQueued)
		next, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select next queued item: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue_items
             SET status = ?, attempts = attempts + 1, started_at = ?, heartbeat_at = ?, updated_at = ?, error_message = NULL
             WHERE id = ? AND status = ?`,
			StatusRunning, nowMs, nowMs, nowMs, next.ID, StatusQueued); err != nil {
			return fmt.Errorf("promote queued item: %w", err)
		}
		granted := fromMillis(nowMs)
		claim = &Claim{
			QueueID:  next.ID,
			Prompt:   next.Prompt,
			Attempts: next.Attempts + 1,
			Lease:    Lease{QueueID: next.ID, GrantedAt: granted, ExpiresAt: granted.Add(window)},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *Store) reclaim(ctx context.Context, tx *sql.Tx, item *Item, lease Lease, nowMs int64) error {
	if s.maxAttempts > 0 && item.Attempts >= s.maxAttempts {
		reason := fmt.Sprintf("abandoned after %d attempts: lease expired at %s", item.Attempts, lease.ExpiresAt.Format(time.RFC3339))
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue_items
             SET status = ?, completed_at = ?, updated_at = ?, error_message = ?
             WHERE id = ?`,
			StatusFailed, nowMs, nowMs, reason, item.ID); err != nil {
			return fmt.Errorf("abandon stale item: %w", err)
		}
		logging.WithJob(s.logger, item.ProjectID, item.ID).Warn("stale job abandoned",
			logging.Int("attempts", item.Attempts),
			logging.String(logging.FieldEventType, "lease_abandoned"),
			logging.String(logging.FieldErrorHint, "raise queue.max_attempts or inspect the worker logs"),
		)
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE queue_items
         SET status = ?, started_at = NULL, heartbeat_at = NULL, updated_at = ?
         WHERE id = ?`,
		StatusQueued, nowMs, item.ID); err != nil {
		return fmt.Errorf("reclaim stale item: %w", err)
	}
	logging.WithJob(s.logger, item.ProjectID, item.ID).Info("stale lease reclaimed",
		logging.Int("attempts", item.Attempts),
		logging.String(logging.FieldEventType, "lease_reclaimed"),
	)
	return nil
}

// Heartbeat renews the lease of a running item. It is a no-op for items in
// any other state.
func (s *Store) Heartbeat(ctx context.Context, queueID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		item, err := s.mustGet(ctx, tx, queueID, "heartbeat")
		if err != nil {
			return err
		}
		if item.Status != StatusRunning {
			return nil
		}
		nowMs := toMillis(s.clock())
		if _, err := tx.ExecContext(ctx,
			"UPDATE queue_items SET heartbeat_at = ?, updated_at = ? WHERE id = ? AND status = ?",
			nowMs, nowMs, queueID, StatusRunning); err != nil {
			return fmt.Errorf("update heartbeat: %w", err)
		}
		return nil
	})
}

// Complete marks an item done. Items already completed or failed keep their
// first outcome.
func (s *Store) Complete(ctx context.Context, queueID string) error {
	return s.finish(ctx, queueID, StatusCompleted, "")
}

// Fail marks an item failed with message. Items already completed or failed
// keep their first outcome.
func (s *Store) Fail(ctx context.Context, queueID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "generation failed"
	}
	return s.finish(ctx, queueID, StatusFailed, message)
}

func (s *Store) finish(ctx context.Context, queueID string, status Status, message string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		item, err := s.mustGet(ctx, tx, queueID, string(status))
		if err != nil {
			return err
		}
		if item.Status.Terminal() {
			return nil
		}
		nowMs := toMillis(s.clock())
		if _, err := tx.ExecContext(ctx,
			"UPDATE queue_items SET status = ?, completed_at = ?, updated_at = ?, error_message = ? WHERE id = ?",
			status, nowMs, nowMs, nullableString(message), queueID); err != nil {
			return fmt.Errorf("mark item %s: %w", status, err)
		}
		return nil
	})
}

func (s *Store) mustGet(ctx context.Context, q querier, queueID, operation string) (*Item, error) {
	item, err := getItem(ctx, q, queueID)
	if err != nil {
		return nil, fmt.Errorf("load queue item: %w", err)
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "queue", operation, fmt.Sprintf("queue item %s not found", queueID), nil)
	}
	return item, nil
}
