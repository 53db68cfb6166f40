package textutil

import (
	"strings"
	"unicode/utf8"
)

// Preview collapses whitespace in s to single spaces and cuts the result to
// at most limit runes, ending with an ellipsis when shortened.
func Preview(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit == 1 {
		return "…"
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit-1]), " ") + "…"
}
