package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"modelforge/internal/services"
)

// RegisterProject records the owner of a project so Enqueue can check it.
// Registering an existing project again updates its name; a different owner
// is rejected.
func (s *Store) RegisterProject(ctx context.Context, projectID, ownerID, name string) error {
	projectID = strings.TrimSpace(projectID)
	ownerID = strings.TrimSpace(ownerID)
	if projectID == "" || ownerID == "" {
		return services.Wrap(services.ErrValidation, "queue", "register project", "project and owner ids are required", nil)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := toMillis(s.clock())
		var owner string
		err := tx.QueryRowContext(ctx, "SELECT owner_id FROM projects WHERE id = ?", projectID).Scan(&owner)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				"INSERT INTO projects (id, owner_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
				projectID, ownerID, name, now, now)
			return err
		case err != nil:
			return err
		case owner != ownerID:
			return services.Wrap(services.ErrValidation, "queue", "register project",
				fmt.Sprintf("project %s belongs to another owner", projectID), nil)
		}
		_, err = tx.ExecContext(ctx, "UPDATE projects SET name = ?, updated_at = ? WHERE id = ?", name, now, projectID)
		return err
	})
}

// Projects lists registered projects in creation order.
func (s *Store) Projects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT id, owner_id, name, created_at, updated_at FROM projects ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var (
			p                Project
			created, updated int64
		)
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &created, &updated); err != nil {
			return nil, err
		}
		p.CreatedAt = fromMillis(created)
		p.UpdatedAt = fromMillis(updated)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Enqueue records the prompt as a user message and queues a generation job
// referencing it. The project must exist and belong to ownerID.
func (s *Store) Enqueue(ctx context.Context, projectID, ownerID, prompt string) (EnqueueResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return EnqueueResult{}, services.Wrap(services.ErrValidation, "queue", "enqueue", "prompt is empty", nil)
	}
	var result EnqueueResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, projectID, ownerID); err != nil {
			return err
		}
		now := toMillis(s.clock())
		messageID := uuid.NewString()
		queueID := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (id, project_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
			messageID, projectID, RoleUser, prompt, now); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO queue_items (id, project_id, owner_id, prompt, user_message_id, status, attempts, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			queueID, projectID, ownerID, prompt, messageID, StatusQueued, now, now); err != nil {
			return fmt.Errorf("insert queue item: %w", err)
		}
		result = EnqueueResult{MessageID: messageID, QueueID: queueID}
		return nil
	})
	if err != nil {
		return EnqueueResult{}, err
	}
	return result, nil
}

func checkOwner(ctx context.Context, q querier, projectID, ownerID string) error {
	var owner string
	err := q.QueryRowContext(ctx, "SELECT owner_id FROM projects WHERE id = ?", projectID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != ownerID) {
		return services.Wrap(services.ErrNotFound, "queue", "enqueue",
			fmt.Sprintf("project %s not found for owner %s", projectID, ownerID), nil)
	}
	return err
}

// Get returns the item with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	item, err := getItem(ensureContext(ctx), s.db, id)
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// List returns a project's items in FIFO order, optionally filtered by status.
func (s *Store) List(ctx context.Context, projectID string, statuses ...Status) ([]*Item, error) {
	query := "SELECT " + itemColumns + " FROM queue_items WHERE project_id = ?"
	args := []any{projectID}
	if len(statuses) > 0 {
		query += " AND status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += " ORDER BY created_at, rowid"
	items, err := queryItems(ensureContext(ctx), s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return items, nil
}

// Messages returns a project's transcript oldest first.
func (s *Store) Messages(ctx context.Context, projectID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT id, project_id, role, content, created_at FROM messages WHERE project_id = ? ORDER BY created_at, rowid",
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var (
			m       Message
			created int64
		)
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = fromMillis(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendMessage adds a transcript entry, typically the assistant's summary
// of a finished job.
func (s *Store) AppendMessage(ctx context.Context, projectID, role, content string) (string, error) {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return "", services.Wrap(services.ErrValidation, "queue", "append message", fmt.Sprintf("unknown role %q", role), nil)
	}
	id := uuid.NewString()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM projects WHERE id = ?", projectID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return services.Wrap(services.ErrNotFound, "queue", "append message", fmt.Sprintf("project %s not found", projectID), nil)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO messages (id, project_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
			id, projectID, role, content, toMillis(s.clock()))
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
