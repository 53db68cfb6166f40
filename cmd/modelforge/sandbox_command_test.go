package main

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"

	"modelforge/internal/sandbox"
)

func TestSandboxServeSpeaksJSONLines(t *testing.T) {
	env := setupCLITestEnv(t)

	frame, err := json.Marshal(sandbox.Message{
		Type:       sandbox.TypeEvaluate,
		Code:       cubeModel,
		Parameters: map[string]any{"size": 3},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, stderr, err := runCLI(t, env, string(frame)+"\n", "sandbox", "serve")
	if err != nil {
		t.Fatalf("serve: %v (%s)", err, stderr)
	}

	var types []string
	var result sandbox.Message
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var msg sandbox.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			t.Fatalf("decode frame %q: %v", scanner.Text(), err)
		}
		types = append(types, msg.Type)
		if msg.Type == sandbox.TypeResult {
			result = msg
		}
	}
	want := []string{sandbox.TypeReady, sandbox.TypeParameters, sandbox.TypeResult}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("frames = %v, want %v", types, want)
	}
	if result.Metadata == nil || result.Metadata.Count != 1 || len(result.Geometries) != 1 {
		t.Fatalf("unexpected result frame %+v", result)
	}
}

func TestWorkerRequiresProject(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "", "worker"); err == nil {
		t.Fatal("expected worker without --project to fail")
	}
}
