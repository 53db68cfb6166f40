package workflow

import (
	"context"
	"fmt"
	"strings"

	"modelforge/internal/config"
	"modelforge/internal/services"
	"modelforge/internal/services/llm"
)

// Completer is the chat completion surface LLMGenerator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const systemPromptTemplate = `You write parametric 3D models as CommonJS JavaScript modules.

Rules:
- Export main(params) returning one geometry or an array of geometries.
- Declare user-adjustable inputs with getParameterDefinitions() returning
  [{ name, type: 'float'|'int'|'checkbox'|'choice'|'text', initial, min, max, step, caption, values }].
- Import modeling functions only with require('%[1]s'):
  primitives: cube, cuboid, sphere, cylinder, polyhedron
  transforms: translate, scale, rotateZ, mirrorX
  booleans: union
  measurements: measureBoundingBox, measureVolume, measureArea
- Units are millimetres. Models must be closed solids suitable for 3D printing.
- There is no filesystem, network, timer or DOM access.

Reply with the module source only.`

// LLMGenerator asks a chat model for modeling code.
type LLMGenerator struct {
	client Completer
	system string
}

// NewLLMGenerator builds a generator whose system prompt names trustedLibrary
// as the import specifier.
func NewLLMGenerator(client Completer, trustedLibrary string) *LLMGenerator {
	if strings.TrimSpace(trustedLibrary) == "" {
		trustedLibrary = "@jscad/modeling"
	}
	return &LLMGenerator{client: client, system: fmt.Sprintf(systemPromptTemplate, trustedLibrary)}
}

// Generate sends the prompt and extracts code from the reply.
func (g *LLMGenerator) Generate(ctx context.Context, req Request) (string, error) {
	reply, err := g.client.Complete(ctx, g.system, req.Prompt)
	if err != nil {
		return "", err
	}
	code := ExtractCode(reply)
	if code == "" {
		return "", services.Wrap(services.ErrValidation, "generator", "llm", "model returned no code", nil)
	}
	return code, nil
}

// NewGenerator builds the generator selected by generator.provider.
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.Generator.Provider {
	case config.ProviderLLM:
		client := llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			Temperature:    cfg.LLM.Temperature,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
		return NewLLMGenerator(client, cfg.Sandbox.TrustedLibrary), nil
	case config.ProviderCommand, "":
		return NewCommandGenerator(cfg.Generator.Command)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "generator", "init",
			fmt.Sprintf("unknown provider %q", cfg.Generator.Provider), nil)
	}
}
