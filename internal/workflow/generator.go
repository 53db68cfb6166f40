package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"modelforge/internal/services"
)

var commandContext = exec.CommandContext

// Request is what a generator is asked to turn into modeling code.
type Request struct {
	ProjectID string
	QueueID   string
	Prompt    string
	Attempt   int
}

// Generator produces modeling code for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// CommandGenerator runs an external command with the prompt on stdin and
// reads the code from stdout. The project and queue ids are exported as
// MODELFORGE_PROJECT_ID and MODELFORGE_QUEUE_ID.
type CommandGenerator struct {
	Command []string
}

// NewCommandGenerator validates command and returns a generator for it.
func NewCommandGenerator(command []string) (*CommandGenerator, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "generator", "init", "generator.command is empty", nil)
	}
	return &CommandGenerator{Command: append([]string(nil), command...)}, nil
}

// Generate runs the command once.
func (g *CommandGenerator) Generate(ctx context.Context, req Request) (string, error) {
	cmd := commandContext(ctx, g.Command[0], g.Command[1:]...) //nolint:gosec
	cmd.Stdin = strings.NewReader(req.Prompt)
	cmd.Env = append(cmd.Environ(),
		"MODELFORGE_PROJECT_ID="+req.ProjectID,
		"MODELFORGE_QUEUE_ID="+req.QueueID,
		fmt.Sprintf("MODELFORGE_ATTEMPT=%d", req.Attempt),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return "", services.Wrap(services.ErrTimeout, "generator", "run", "generator timed out", ctxErr)
			}
			return "", ctxErr
		}
		return "", services.Wrap(services.ErrTransient, "generator", "run", tail(stderr.String(), 512), err)
	}
	code := ExtractCode(stdout.String())
	if code == "" {
		return "", services.Wrap(services.ErrValidation, "generator", "run", "generator returned no code", nil)
	}
	return code, nil
}

// ExtractCode strips a surrounding markdown code fence, which generators
// backed by chat models often add. Text without a fence is returned trimmed.
func ExtractCode(out string) string {
	out = strings.TrimSpace(out)
	start := strings.Index(out, "```")
	if start < 0 {
		return out
	}
	body := out[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return out
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
