package sandbox

import (
	"modelforge/internal/geometry"
	"modelforge/internal/services"
)

// Message types exchanged with a sandbox context.
const (
	TypeEvaluate   = "evaluate"
	TypeReady      = "ready"
	TypeParameters = "parameters"
	TypeResult     = "result"
	TypeError      = "error"
)

// Message is one protocol frame. Inbound frames carry Code and Parameters;
// outbound frames carry the remaining fields depending on Type.
type Message struct {
	Type                 string              `json:"type"`
	Code                 string              `json:"code,omitempty"`
	Parameters           map[string]any      `json:"parameters,omitempty"`
	ParameterDefinitions any                 `json:"parameterDefinitions,omitempty"`
	Geometries           []geometry.Geometry `json:"geometries,omitempty"`
	Metadata             *Metadata           `json:"metadata,omitempty"`
	Error                *ErrorInfo          `json:"error,omitempty"`
}

// Metadata describes a successful evaluation.
type Metadata struct {
	Count      int   `json:"count"`
	Polygons   int   `json:"polygons"`
	DurationMs int64 `json:"durationMs"`
}

// ErrorInfo is a failure converted to a plain value at the sandbox boundary.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (e *ErrorInfo) Error() string {
	if e == nil {
		return ""
	}
	return e.Kind + ": " + e.Message
}

// Unwrap exposes the taxonomy marker for Kind so errors.Is works on boundary
// errors.
func (e *ErrorInfo) Unwrap() error {
	if e == nil {
		return nil
	}
	return services.MarkerForKind(e.Kind)
}

// Evaluation is what one evaluate request produced. Definitions are kept
// even when main later fails.
type Evaluation struct {
	HasDefinitions       bool
	ParameterDefinitions any
	Geometries           []geometry.Geometry
	Metadata             Metadata
}

// frames renders an evaluation outcome as the outbound protocol sequence.
func frames(eval Evaluation, info *ErrorInfo) []Message {
	var out []Message
	if eval.HasDefinitions {
		out = append(out, Message{Type: TypeParameters, ParameterDefinitions: eval.ParameterDefinitions})
	}
	if info != nil {
		return append(out, Message{Type: TypeError, Error: info})
	}
	meta := eval.Metadata
	geoms := eval.Geometries
	if geoms == nil {
		geoms = []geometry.Geometry{}
	}
	return append(out, Message{Type: TypeResult, Geometries: geoms, Metadata: &meta})
}
