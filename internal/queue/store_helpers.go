package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, project_id, owner_id, prompt, user_message_id, status, attempts, created_at, updated_at, started_at, heartbeat_at, completed_at, error_message"

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item          Item
		userMessageID sql.NullString
		status        string
		createdAt     int64
		updatedAt     int64
		startedAt     sql.NullInt64
		heartbeatAt   sql.NullInt64
		completedAt   sql.NullInt64
		errorMessage  sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.ProjectID,
		&item.OwnerID,
		&item.Prompt,
		&userMessageID,
		&status,
		&item.Attempts,
		&createdAt,
		&updatedAt,
		&startedAt,
		&heartbeatAt,
		&completedAt,
		&errorMessage,
	); err != nil {
		return nil, err
	}
	item.UserMessageID = userMessageID.String
	item.Status = Status(status)
	item.CreatedAt = fromMillis(createdAt)
	item.UpdatedAt = fromMillis(updatedAt)
	item.StartedAt = nullableMillis(startedAt)
	item.HeartbeatAt = nullableMillis(heartbeatAt)
	item.CompletedAt = nullableMillis(completedAt)
	item.Error = errorMessage.String
	return &item, nil
}

func queryItems(ctx context.Context, q querier, query string, args ...any) ([]*Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// getItem returns nil without error when id does not exist.
func getItem(ctx context.Context, q querier, id string) (*Item, error) {
	row := q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM queue_items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// Timestamps are stored as integer Unix milliseconds so ordering by column
// value matches chronological order.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
