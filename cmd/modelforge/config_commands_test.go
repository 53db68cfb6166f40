package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitValidateAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "config", "validate")
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out = mustRunCLI(t, env, "config", "init", "--path", target)
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, env, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	mustRunCLI(t, env, "config", "init", "--path", target, "--overwrite")

	out = mustRunCLI(t, env, "config", "show")
	requireContains(t, out, "[sandbox]")
	requireContains(t, out, env.cfg.Paths.DataDir)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[sandbox]\norigin = \"ftp://example.com\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, env, "", "queue", "stats"); err == nil {
		t.Fatal("expected invalid origin to be rejected")
	}
}
