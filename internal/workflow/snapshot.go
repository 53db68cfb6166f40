package workflow

import (
	"fmt"
	"strings"
	"time"

	"modelforge/internal/geometry"
	"modelforge/internal/params"
	"modelforge/internal/sandbox"
)

// Parameter schema sources.
const (
	SchemaRuntime = "runtime"
	SchemaStatic  = "static"
)

// Snapshot is the persisted result of one successful job.
type Snapshot struct {
	ProjectID    string                      `json:"projectId"`
	QueueID      string                      `json:"queueId"`
	Prompt       string                      `json:"prompt"`
	Attempts     int                         `json:"attempts"`
	Code         string                      `json:"code"`
	CodeSHA256   string                      `json:"codeSha256"`
	SchemaSource string                      `json:"schemaSource"`
	Parameters   []params.Parameter          `json:"parameters"`
	Metadata     sandbox.Metadata            `json:"metadata"`
	Measurement  geometry.Measurement        `json:"measurement"`
	Printability geometry.PrintabilityReport `json:"printability"`
	Geometries   []geometry.Geometry         `json:"geometries"`
	GeneratedAt  time.Time                   `json:"generatedAt"`
}

// Summary renders the assistant message recorded for a finished job.
func (s Snapshot) Summary() string {
	dims := s.Measurement.BoundingBox.Dimensions
	var b strings.Builder
	fmt.Fprintf(&b, "Generated %d %s (%d triangles), %.1f x %.1f x %.1f mm, volume %.1f mm³.",
		s.Metadata.Count, plural(s.Metadata.Count, "geometry", "geometries"),
		s.Measurement.TriangleCount, dims[0], dims[1], dims[2], s.Measurement.Volume)
	if len(s.Parameters) > 0 {
		names := make([]string, 0, len(s.Parameters))
		for _, p := range s.Parameters {
			names = append(names, p.Label)
		}
		fmt.Fprintf(&b, " Parameters: %s.", strings.Join(names, ", "))
	}
	if s.Printability.Printable {
		b.WriteString(" Printable.")
	} else {
		fmt.Fprintf(&b, " Not printable: %d issue(s).", len(s.Printability.Issues))
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Schema prefers definitions reported by the running code and falls back
// to static extraction from the source text.
func Schema(code string, outcome sandbox.Outcome) ([]params.Parameter, string) {
	if outcome.HasParameters {
		return params.FromDefinitions(outcome.ParameterDefinitions), SchemaRuntime
	}
	return params.Extract(code), SchemaStatic
}
