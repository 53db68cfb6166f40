package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"modelforge/internal/notifications"
	"modelforge/internal/queue"
	"modelforge/internal/testsupport"
	"modelforge/internal/workflow"
)

const definedCube = `
const { cube } = require('@jscad/modeling').primitives;
module.exports = {
  getParameterDefinitions: () => [{ name: 'size', type: 'float', initial: 10, caption: 'Size (mm)' }],
  main: (p) => cube({ size: p.size || 10 }),
};`

const destructuredCube = `
const { cube } = require('@jscad/modeling').primitives;
function main(params) {
  const { size = 12 } = params;
  return cube({ size });
}
module.exports = { main };`

type harness struct {
	store   *queue.Store
	manager *workflow.Manager
	outDir  string
	logDir  string
}

func newHarness(t *testing.T, gen workflow.Generator) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.RegisterProject(t, store, "p1", "alice")
	manager := workflow.NewManager(cfg, store, gen, nil, workflow.WithPollInterval(10*time.Millisecond))
	return &harness{store: store, manager: manager, outDir: cfg.Paths.OutputDir, logDir: cfg.Paths.LogDir}
}

func staticGenerator(code string) workflow.Generator {
	return workflow.GeneratorFunc(func(context.Context, workflow.Request) (string, error) {
		return code, nil
	})
}

func mustItem(t *testing.T, store *queue.Store, id string) *queue.Item {
	t.Helper()
	item, err := store.Get(context.Background(), id)
	if err != nil || item == nil {
		t.Fatalf("Get %s: %+v, %v", id, item, err)
	}
	return item
}

func TestDrainCompletesJobAndWritesSnapshot(t *testing.T) {
	h := newHarness(t, staticGenerator(definedCube))
	id := testsupport.Enqueue(t, h.store, "p1", "alice", "a 10mm cube")

	if err := h.manager.Drain(context.Background(), []string{"p1"}); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	item := mustItem(t, h.store, id)
	if item.Status != queue.StatusCompleted || item.Attempts != 1 || item.Error != "" {
		t.Fatalf("unexpected item %+v", item)
	}

	raw, err := os.ReadFile(item.SnapshotPath(h.outDir))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap workflow.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.SchemaSource != workflow.SchemaRuntime || len(snap.Parameters) != 1 || snap.Parameters[0].Label != "Size (mm)" {
		t.Fatalf("unexpected schema %+v (%s)", snap.Parameters, snap.SchemaSource)
	}
	if math.Abs(snap.Measurement.Volume-1000) > 1e-6 {
		t.Fatalf("expected volume 1000, got %v", snap.Measurement.Volume)
	}
	if !snap.Printability.Printable || snap.Metadata.Count != 1 || snap.CodeSHA256 == "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	msgs, err := h.store.Messages(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Role != queue.RoleAssistant || !strings.Contains(msgs[1].Content, "Printable") {
		t.Fatalf("unexpected transcript %+v", msgs)
	}

	logPath := workflow.NewJobLogger(h.logDir).Path("p1", id)
	logData, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	if !strings.Contains(string(logData), "job_completed") {
		t.Fatalf("job log missing completion event:\n%s", logData)
	}

	status := h.manager.Status(context.Background())
	if status.Running || status.Completed != 1 || status.LastItem == nil || status.LastItem.ID != id {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestDrainUsesStaticSchemaDefaults(t *testing.T) {
	h := newHarness(t, staticGenerator(destructuredCube))
	id := testsupport.Enqueue(t, h.store, "p1", "alice", "a cube")

	if err := h.manager.Drain(context.Background(), []string{"p1"}); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	item := mustItem(t, h.store, id)
	raw, err := os.ReadFile(item.SnapshotPath(h.outDir))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap workflow.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.SchemaSource != workflow.SchemaStatic || len(snap.Parameters) != 1 || snap.Parameters[0].Name != "size" {
		t.Fatalf("unexpected schema %+v (%s)", snap.Parameters, snap.SchemaSource)
	}
	if math.Abs(snap.Measurement.Volume-1728) > 1e-6 {
		t.Fatalf("main should receive the extracted default size 12, volume %v", snap.Measurement.Volume)
	}
}

func TestEvaluationFailureIsRecordedOnItem(t *testing.T) {
	h := newHarness(t, staticGenerator(`module.exports = {};`))
	id := testsupport.Enqueue(t, h.store, "p1", "alice", "nothing")

	if err := h.manager.Drain(context.Background(), []string{"p1"}); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	item := mustItem(t, h.store, id)
	if item.Status != queue.StatusFailed || !strings.HasPrefix(item.Error, "EvaluationError:") {
		t.Fatalf("unexpected item %+v", item)
	}
	if _, err := os.Stat(item.SnapshotPath(h.outDir)); !os.IsNotExist(err) {
		t.Fatalf("failed jobs must not write a snapshot, stat err = %v", err)
	}
	if status := h.manager.Status(context.Background()); status.Failed != 1 || status.LastError == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestGeneratorFailureIsRecordedOnItem(t *testing.T) {
	gen := workflow.GeneratorFunc(func(context.Context, workflow.Request) (string, error) {
		return "", errors.New("model overloaded")
	})
	h := newHarness(t, gen)
	id := testsupport.Enqueue(t, h.store, "p1", "alice", "anything")

	if err := h.manager.Drain(context.Background(), []string{"p1"}); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	item := mustItem(t, h.store, id)
	if item.Status != queue.StatusFailed || !strings.Contains(item.Error, "model overloaded") {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestLanesProcessEachProjectInOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string][]string{}
	)
	gen := workflow.GeneratorFunc(func(_ context.Context, req workflow.Request) (string, error) {
		mu.Lock()
		seen[req.ProjectID] = append(seen[req.ProjectID], req.Prompt)
		mu.Unlock()
		return definedCube, nil
	})
	h := newHarness(t, gen)
	testsupport.RegisterProject(t, h.store, "p2", "bob")
	for _, prompt := range []string{"a1", "a2", "a3"} {
		testsupport.Enqueue(t, h.store, "p1", "alice", prompt)
	}
	for _, prompt := range []string{"b1", "b2"} {
		testsupport.Enqueue(t, h.store, "p2", "bob", prompt)
	}

	if err := h.manager.Drain(context.Background(), []string{"p1", "p2", "p1"}); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := strings.Join(seen["p1"], ","); got != "a1,a2,a3" {
		t.Fatalf("p1 order = %s", got)
	}
	if got := strings.Join(seen["p2"], ","); got != "b1,b2" {
		t.Fatalf("p2 order = %s", got)
	}
	stats, err := h.store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusCompleted] != 5 {
		t.Fatalf("expected 5 completed, got %v", stats)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, staticGenerator(definedCube))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.manager.Run(ctx, []string{"p1"}) }()

	id := testsupport.Enqueue(t, h.store, "p1", "alice", "late arrival")
	deadline := time.Now().Add(10 * time.Second)
	for mustItem(t, h.store, id).Status != queue.StatusCompleted {
		if time.Now().After(deadline) {
			t.Fatal("job was not processed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRequiresProjects(t *testing.T) {
	h := newHarness(t, staticGenerator(definedCube))
	if err := h.manager.Run(context.Background(), []string{" "}); err == nil {
		t.Fatal("expected error without project ids")
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   map[notifications.Event]notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.last == nil {
		r.last = make(map[notifications.Event]notifications.Payload)
	}
	r.last[event] = payload
	return errors.New("ntfy unreachable")
}

func TestDrainPublishesJobOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.RegisterProject(t, store, "p1", "alice")
	gen := workflow.GeneratorFunc(func(_ context.Context, req workflow.Request) (string, error) {
		if req.Prompt == "broken" {
			return `module.exports = {};`, nil
		}
		return definedCube, nil
	})
	notifier := &recordingNotifier{}
	manager := workflow.NewManager(cfg, store, gen, nil, workflow.WithNotifier(notifier))

	testsupport.Enqueue(t, store, "p1", "alice", "cube")
	failedID := testsupport.Enqueue(t, store, "p1", "alice", "broken")

	if err := manager.Drain(context.Background(), []string{"p1"}); err != nil {
		t.Fatalf("Drain should not surface notification errors: %v", err)
	}

	want := []notifications.Event{
		notifications.EventJobCompleted,
		notifications.EventJobFailed,
		notifications.EventQueueDrained,
	}
	if diff := cmp.Diff(want, notifier.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	failed := notifier.last[notifications.EventJobFailed]
	if failed["queueID"] != failedID || failed["projectID"] != "p1" {
		t.Fatalf("unexpected failure payload %+v", failed)
	}
	if msg, _ := failed["error"].(string); !strings.HasPrefix(msg, "EvaluationError:") {
		t.Fatalf("unexpected failure message %q", msg)
	}
	drained := notifier.last[notifications.EventQueueDrained]
	if drained["completed"] != 1 || drained["failed"] != 1 {
		t.Fatalf("unexpected drain payload %+v", drained)
	}
}
