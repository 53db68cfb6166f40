package params

// scanner walks JavaScript-ish source while skipping string literals and
// comments so that brackets inside them are not counted.
type scanner struct {
	src string
	pos int
}

// skipLiteral advances past a string or comment starting at pos and reports
// whether it did so.
func (s *scanner) skipLiteral() bool {
	if s.pos >= len(s.src) {
		return false
	}
	c := s.src[s.pos]
	switch {
	case c == '\'' || c == '"' || c == '`':
		s.pos++
		for s.pos < len(s.src) {
			switch s.src[s.pos] {
			case '\\':
				s.pos += 2
				continue
			case c:
				s.pos++
				return true
			}
			s.pos++
		}
		s.pos = min(s.pos, len(s.src))
		return true
	case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
		for s.pos < len(s.src) && s.src[s.pos] != '\n' {
			s.pos++
		}
		return true
	case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
		s.pos += 2
		for s.pos+1 < len(s.src) && !(s.src[s.pos] == '*' && s.src[s.pos+1] == '/') {
			s.pos++
		}
		s.pos = min(s.pos+2, len(s.src))
		return true
	}
	return false
}

// balanced returns the text between the opening bracket at start and its
// matching close, exclusive. ok is false when the input ends first.
func balanced(src string, start int) (body string, end int, ok bool) {
	open := src[start]
	var closer byte
	switch open {
	case '[':
		closer = ']'
	case '{':
		closer = '}'
	case '(':
		closer = ')'
	default:
		return "", start, false
	}
	s := &scanner{src: src, pos: start + 1}
	depth := 1
	for s.pos < len(src) {
		if s.skipLiteral() {
			continue
		}
		switch src[s.pos] {
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return src[start+1 : s.pos], s.pos, true
			}
		}
		s.pos++
	}
	return "", len(src), false
}

// topLevelObjects returns every {...} segment at nesting depth zero in body.
func topLevelObjects(body string) []string {
	var out []string
	s := &scanner{src: body}
	for s.pos < len(body) {
		if s.skipLiteral() {
			continue
		}
		switch body[s.pos] {
		case '{':
			inner, end, ok := balanced(body, s.pos)
			if !ok {
				return out
			}
			out = append(out, inner)
			s.pos = end + 1
			continue
		case '[', '(':
			_, end, ok := balanced(body, s.pos)
			if !ok {
				return out
			}
			s.pos = end + 1
			continue
		}
		s.pos++
	}
	return out
}

// splitTopLevel splits text on sep characters that sit outside strings,
// comments and any bracket pair.
func splitTopLevel(text string, sep byte) []string {
	var parts []string
	s := &scanner{src: text}
	depth := 0
	last := 0
	for s.pos < len(text) {
		if s.skipLiteral() {
			continue
		}
		switch c := text[s.pos]; {
		case c == '[' || c == '{' || c == '(':
			depth++
		case c == ']' || c == '}' || c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, text[last:s.pos])
			last = s.pos + 1
		}
		s.pos++
	}
	return append(parts, text[last:])
}
