package textutil

import (
	"strings"
	"unicode"
)

const maxSegmentRunes = 96

// PathSegment turns an id into a single safe path element. Separators and
// whitespace become dashes, other punctuation is dropped, dash runs collapse,
// and leading or trailing dots, dashes and underscores are trimmed. Results
// are capped at 96 runes. An empty result yields fallback.
func PathSegment(value, fallback string) string {
	var b strings.Builder
	dash := false
	count := 0
	for _, r := range strings.TrimSpace(value) {
		if count >= maxSegmentRunes {
			break
		}
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || unicode.IsSpace(r) || r == '-':
			if !dash {
				b.WriteRune('-')
				count++
			}
			dash = true
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.':
			b.WriteRune(r)
			count++
		default:
			continue
		}
		dash = false
	}
	out := strings.Trim(b.String(), "-_.")
	if out == "" {
		return fallback
	}
	return out
}
