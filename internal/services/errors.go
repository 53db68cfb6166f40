package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrCircularModule = errors.New("circular module reference")
	ErrModuleFetch    = errors.New("module fetch failure")
	ErrEvaluation     = errors.New("evaluation error")
	ErrTimeout        = errors.New("timeout")
	ErrConfiguration  = errors.New("configuration error")
	ErrTransient      = errors.New("transient failure")
)

// Kind names used when errors cross a serialization boundary.
const (
	KindValidation     = "ValidationError"
	KindNotFound       = "NotFoundError"
	KindCircularModule = "CircularModuleReference"
	KindModuleFetch    = "ModuleFetchFailure"
	KindEvaluation     = "EvaluationError"
	KindTimeout        = "Timeout"
	KindConfiguration  = "ConfigurationError"
	KindInternal       = "InternalError"
)

var kindMarkers = []struct {
	marker error
	kind   string
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrCircularModule, KindCircularModule},
	{ErrModuleFetch, KindModuleFetch},
	{ErrEvaluation, KindEvaluation},
	{ErrTimeout, KindTimeout},
	{ErrConfiguration, KindConfiguration},
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its taxonomy name. Errors without a known marker are
// reported as internal.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, km := range kindMarkers {
		if errors.Is(err, km.marker) {
			return km.kind
		}
	}
	return KindInternal
}

// MarkerForKind is the inverse of Kind for errors rebuilt from wire messages.
func MarkerForKind(kind string) error {
	for _, km := range kindMarkers {
		if km.kind == kind {
			return km.marker
		}
	}
	return ErrTransient
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
