package params

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FromDefinitions converts the value returned by a running
// getParameterDefinitions into parameters, applying the same field rules as
// Extract. Entries that are not objects with a name are skipped.
func FromDefinitions(defs any) []Parameter {
	out := []Parameter{}
	list, ok := defs.([]any)
	if !ok {
		return out
	}
	for _, entry := range list {
		object, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		f := make(map[string]literal, len(object))
		for key, value := range object {
			lit, ok := literalOf(value)
			if !ok {
				continue
			}
			f[key] = lit
		}
		if p, ok := fromDefinition(f); ok {
			out = append(out, p)
		}
	}
	return out
}

// literalOf renders a runtime value as the source literal that would have
// produced it.
func literalOf(value any) (literal, bool) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return literal{}, false
	}
	return parseLiteral(strings.TrimSuffix(buf.String(), "\n")), true
}
