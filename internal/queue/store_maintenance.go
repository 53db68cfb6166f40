package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"modelforge/internal/services"
)

// ListStatus returns the read-only snapshot clients poll.
func (s *Store) ListStatus(ctx context.Context, projectID string) (StatusSummary, error) {
	ctx = ensureContext(ctx)
	var summary StatusSummary
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM queue_items WHERE project_id = ? AND status IN (?, ?) GROUP BY status",
		projectID, StatusQueued, StatusRunning)
	if err != nil {
		return StatusSummary{}, fmt.Errorf("queue status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return StatusSummary{}, err
		}
		switch Status(status) {
		case StatusQueued:
			summary.QueuedCount = count
		case StatusRunning:
			summary.RunningCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return StatusSummary{}, err
	}

	if summary.QueuedCount > 0 {
		next, err := s.firstPrompt(ctx, projectID, StatusQueued)
		if err != nil {
			return StatusSummary{}, err
		}
		summary.NextQueuedPrompt = next
	}
	if summary.RunningCount > 0 {
		active, err := s.firstPrompt(ctx, projectID, StatusRunning)
		if err != nil {
			return StatusSummary{}, err
		}
		summary.ActivePrompt = active
	}
	return summary, nil
}

func (s *Store) firstPrompt(ctx context.Context, projectID string, status Status) (string, error) {
	var prompt string
	err := s.db.QueryRowContext(ctx,
		"SELECT prompt FROM queue_items WHERE project_id = ? AND status = ? ORDER BY created_at, rowid LIMIT 1",
		projectID, status).Scan(&prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select %s prompt: %w", status, err)
	}
	return prompt, nil
}

// ClearAll deletes every message and queue item of the project and seeds a
// single system notice. Running jobs lose their item; their later
// Complete/Fail calls return ErrNotFound.
func (s *Store) ClearAll(ctx context.Context, projectID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM projects WHERE id = ?", projectID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return services.Wrap(services.ErrNotFound, "queue", "clear", fmt.Sprintf("project %s not found", projectID), nil)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM queue_items WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("delete queue items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (id, project_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
			uuid.NewString(), projectID, RoleSystem, ClearedNotice, toMillis(s.clock())); err != nil {
			return fmt.Errorf("seed notice: %w", err)
		}
		return nil
	})
}

// Stats returns a count of items grouped by status across all projects.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var expectedTables = []string{"projects", "messages", "queue_items"}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	for _, table := range expectedTables {
		if !slices.Contains(tables, table) {
			health.MissingTables = append(health.MissingTables, table)
		}
	}

	if health.SchemaVersion, err = readUserVersion(connCtx, s.db); err != nil {
		health.Error = err.Error()
		return health, err
	}
	if slices.Contains(tables, "queue_items") {
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM queue_items").Scan(&health.TotalItems); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count queue items: %w", err)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
