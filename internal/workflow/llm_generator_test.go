package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"modelforge/internal/config"
	"modelforge/internal/services"
	"modelforge/internal/testsupport"
)

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func TestLLMGeneratorExtractsFencedCode(t *testing.T) {
	var gotSystem, gotUser string
	gen := NewLLMGenerator(completerFunc(func(_ context.Context, system, user string) (string, error) {
		gotSystem, gotUser = system, user
		return "Here you go:\n```js\nmodule.exports = { main: () => [] };\n```", nil
	}), "@acme/shapes")

	code, err := gen.Generate(context.Background(), Request{Prompt: "a bracket"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if code != "module.exports = { main: () => [] };" {
		t.Fatalf("unexpected code %q", code)
	}
	if gotUser != "a bracket" || !strings.Contains(gotSystem, "require('@acme/shapes')") {
		t.Fatalf("unexpected prompts system=%q user=%q", gotSystem, gotUser)
	}
}

func TestLLMGeneratorRejectsEmptyReply(t *testing.T) {
	gen := NewLLMGenerator(completerFunc(func(context.Context, string, string) (string, error) {
		return "```\n```", nil
	}), "")
	if _, err := gen.Generate(context.Background(), Request{Prompt: "x"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewGeneratorSelectsProvider(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := NewGenerator(cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty command, got %v", err)
	}

	cfg.Generator.Command = []string{"gen"}
	gen, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, ok := gen.(*CommandGenerator); !ok {
		t.Fatalf("expected command generator, got %T", gen)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "module.exports = {};"}}},
		})
	}))
	defer server.Close()

	cfg.Generator.Provider = config.ProviderLLM
	cfg.LLM.APIKey = "k"
	cfg.LLM.Model = "m"
	cfg.LLM.BaseURL = server.URL
	gen, err = NewGenerator(cfg)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	code, err := gen.Generate(context.Background(), Request{Prompt: "cube"})
	if err != nil || code != "module.exports = {};" {
		t.Fatalf("Generate = %q, %v", code, err)
	}
}
