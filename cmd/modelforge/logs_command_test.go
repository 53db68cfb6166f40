package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modelforge/internal/logs"
	"modelforge/internal/queue"
	"modelforge/internal/workflow"
)

func TestLogsShowsWorkerLogTail(t *testing.T) {
	env := setupCLITestEnv(t)
	requireContains(t, mustRunCLI(t, env, "logs"), "No log output")

	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(logs.CurrentPath(env.cfg.Paths.LogDir), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out := mustRunCLI(t, env, "logs", "-n", "2")
	if out != "two\nthree\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLogsShowsJobLog(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "project", "register", "p1", "--owner", "alice")
	var res queue.EnqueueResult
	decodeJSON(t, mustRunCLI(t, env, "--json", "queue", "enqueue", "p1", "cube", "--owner", "alice"), &res)

	path := workflow.NewJobLogger(env.cfg.Paths.LogDir).Path("p1", res.QueueID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"msg":"job claimed"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write job log: %v", err)
	}
	out := mustRunCLI(t, env, "logs", res.QueueID)
	if !strings.Contains(out, "job claimed") {
		t.Fatalf("unexpected output %q", out)
	}

	if _, _, err := runCLI(t, env, "", "logs", "missing-id"); err == nil {
		t.Fatal("expected unknown queue id to fail")
	}
}
