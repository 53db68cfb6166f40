package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is an external command the worker needs on PATH.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement resolved to an executable.
type Status struct {
	Requirement
	Available bool
	// Detail is the resolved path when available, otherwise the reason.
	Detail string
}

// GeneratorRequirement describes the executable of a generator.command line.
// An empty command yields a requirement with no command.
func GeneratorRequirement(command []string) Requirement {
	req := Requirement{
		Name:        "Generator command",
		Description: "Turns prompts into modeling code",
	}
	if len(command) > 0 {
		req.Command = command[0]
	}
	return req
}

// Check resolves a single requirement.
func Check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	status.Detail = path
	return status
}

// CheckBinaries resolves each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}
