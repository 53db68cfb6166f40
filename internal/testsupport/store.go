package testsupport

import (
	"context"
	"testing"

	"modelforge/internal/config"
	"modelforge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RegisterProject registers projectID owned by ownerID.
func RegisterProject(t testing.TB, store *queue.Store, projectID, ownerID string) {
	t.Helper()

	if err := store.RegisterProject(context.Background(), projectID, ownerID, projectID); err != nil {
		t.Fatalf("store.RegisterProject: %v", err)
	}
}

// Enqueue queues prompt on a registered project and returns the queue id.
func Enqueue(t testing.TB, store *queue.Store, projectID, ownerID, prompt string) string {
	t.Helper()

	res, err := store.Enqueue(context.Background(), projectID, ownerID, prompt)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return res.QueueID
}
