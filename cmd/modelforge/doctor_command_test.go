package main

import (
	"strings"
	"testing"

	"modelforge/internal/config"
)

func TestDoctorPassesWithGenerator(t *testing.T) {
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Generator.Command = []string{"sh", "-c", "cat"}
	})
	out := mustRunCLI(t, env, "doctor")
	requireContains(t, out, "Queue database")
	requireContains(t, out, "ok")
	if strings.Contains(out, "FAIL") {
		t.Fatalf("unexpected failure:\n%s", out)
	}
}

func TestDoctorFailsWithoutGenerator(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env, "", "doctor")
	if err == nil {
		t.Fatalf("expected doctor to fail without a generator command\n%s", out)
	}
	requireContains(t, out, "FAIL")
}
