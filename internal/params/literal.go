package params

import (
	"strconv"
	"strings"
)

// literal is one raw value read from source text.
type literal struct {
	raw    string
	str    string
	quoted bool
}

func parseLiteral(text string) literal {
	text = strings.TrimSpace(stripComments(text))
	lit := literal{raw: text}
	if len(text) >= 2 {
		q := text[0]
		if (q == '\'' || q == '"' || q == '`') && text[len(text)-1] == q {
			s := &scanner{src: text}
			s.skipLiteral()
			if s.pos == len(text) {
				lit.quoted = true
				lit.str = unescape(text[1 : len(text)-1])
				return lit
			}
		}
	}
	lit.str = text
	return lit
}

// stripComments replaces // and /* */ comments outside string literals with
// a space.
func stripComments(text string) string {
	if !strings.Contains(text, "/") {
		return text
	}
	var b strings.Builder
	s := &scanner{src: text}
	for s.pos < len(text) {
		start := s.pos
		if s.skipLiteral() {
			if text[start] == '/' {
				b.WriteByte(' ')
			} else {
				b.WriteString(text[start:s.pos])
			}
			continue
		}
		b.WriteByte(text[s.pos])
		s.pos++
	}
	return b.String()
}

func unescape(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func (l literal) number() (float64, bool) {
	if l.quoted || l.raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(l.raw, "_", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (l literal) boolean() (bool, bool) {
	if l.quoted {
		return false, false
	}
	switch l.raw {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func (l literal) isArray() bool {
	return strings.HasPrefix(l.raw, "[") && strings.HasSuffix(l.raw, "]")
}

// elements splits an array literal into its items.
func (l literal) elements() []literal {
	if !l.isArray() {
		return nil
	}
	inner := strings.TrimSpace(l.raw[1 : len(l.raw)-1])
	if inner == "" {
		return nil
	}
	var out []literal
	for _, part := range splitTopLevel(inner, ',') {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, parseLiteral(part))
	}
	return out
}

// fields reads key: value pairs from the inside of an object literal. Entries
// that are not key/value shaped are ignored.
func fields(object string) map[string]literal {
	out := make(map[string]literal)
	for _, entry := range splitTopLevel(object, ',') {
		colon := keyColon(entry)
		if colon < 0 {
			continue
		}
		tokens := strings.Fields(entry[:colon])
		if len(tokens) == 0 {
			continue
		}
		key := strings.Trim(tokens[len(tokens)-1], `'"`)
		if key == "" {
			continue
		}
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = parseLiteral(entry[colon+1:])
	}
	return out
}

// keyColon finds the colon ending a property key, skipping a quoted key.
func keyColon(entry string) int {
	s := &scanner{src: entry}
	for s.pos < len(entry) {
		if s.skipLiteral() {
			continue
		}
		switch entry[s.pos] {
		case ':':
			return s.pos
		case '{', '[', '(', '=':
			return -1
		}
		s.pos++
	}
	return -1
}
