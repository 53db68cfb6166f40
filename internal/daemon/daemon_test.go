package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"modelforge/internal/daemon"
	"modelforge/internal/queue"
	"modelforge/internal/testsupport"
	"modelforge/internal/workflow"
)

const cubeModel = `
const { cube } = require('@jscad/modeling').primitives;
module.exports = { main: () => cube({ size: 2 }) };`

func newDaemon(t *testing.T) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.RegisterProject(t, store, "p1", "alice")
	gen := workflow.GeneratorFunc(func(context.Context, workflow.Request) (string, error) {
		return cubeModel, nil
	})
	mgr := workflow.NewManager(cfg, store, gen, nil, workflow.WithPollInterval(10*time.Millisecond))
	d, err := daemon.New(cfg, store, nil, mgr, []string{"p1"})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, store := newDaemon(t)
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.QueueDBPath != store.Path() {
		t.Fatalf("unexpected status %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	id := testsupport.Enqueue(t, store, "p1", "alice", "a small cube")
	deadline := time.Now().Add(10 * time.Second)
	for {
		item, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if item.Status == queue.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job not processed, status %s", item.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	select {
	case <-d.Done():
	default:
		t.Fatal("done channel should be closed after Stop")
	}
}

func TestSecondDaemonIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.RegisterProject(t, store, "p1", "alice")
	gen := workflow.GeneratorFunc(func(context.Context, workflow.Request) (string, error) { return cubeModel, nil })

	first, err := daemon.New(cfg, store, nil, workflow.NewManager(cfg, store, gen, nil), []string{"p1"})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, store, nil, workflow.NewManager(cfg, store, gen, nil), []string{"p1"})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(first.Stop)

	if err := second.Drain(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestDrainProcessesQueue(t *testing.T) {
	d, store := newDaemon(t)
	id := testsupport.Enqueue(t, store, "p1", "alice", "cube")

	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	item, err := store.Get(context.Background(), id)
	if err != nil || item == nil || item.Status != queue.StatusCompleted {
		t.Fatalf("unexpected item %+v, %v", item, err)
	}
	health, err := d.DatabaseHealth(context.Background())
	if err != nil || health.TotalItems != 1 {
		t.Fatalf("unexpected health %+v, %v", health, err)
	}
}
