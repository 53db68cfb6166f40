package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestResolveProjects(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		env   string
		want  []string
	}{
		{"flags win", []string{"a"}, "b,c", []string{"a"}},
		{"env commas", nil, "b,c", []string{"b", "c"}},
		{"env mixed", nil, " b, c\td ", []string{"b", "c", "d"}},
		{"nothing", nil, "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveProjects(tt.flags, tt.env)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommandRequiresProjects(t *testing.T) {
	t.Setenv(projectsEnv, "")
	t.Setenv("HOME", t.TempDir())
	cmd := newCommand()
	cmd.SetArgs([]string{"--config", t.TempDir() + "/missing.toml"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without projects")
	}
}
