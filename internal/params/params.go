package params

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Parameter types.
const (
	TypeNumber  = "number"
	TypeText    = "text"
	TypeChoice  = "choice"
	TypeBoolean = "boolean"
)

// Parameter is one user-adjustable input of a model.
type Parameter struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Value   any      `json:"value"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Step    float64  `json:"step"`
	Label   string   `json:"label"`
	Options []string `json:"options,omitempty"`
}

var (
	definitionsDecl = regexp.MustCompile(`(?:function\s*\*?\s*getParameterDefinitions\s*\(|\bgetParameterDefinitions\s*[=:])`)

	destructuringPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:const|let|var)\s*\{`),
		regexp.MustCompile(`function\s+main\s*\(\s*\{`),
		regexp.MustCompile(`\bmain\s*[=:]\s*(?:function\s*)?\(\s*\{`),
	}
	paramsSource = regexp.MustCompile(`^\s*=\s*(?:params|parameters)\b`)
)

// Extract returns the parameters declared in source. It returns an empty,
// non-nil slice when nothing can be recovered.
func Extract(source string) []Parameter {
	if defs, ok := fromDefinitions(source); ok {
		return defs
	}
	return fromDestructuring(source)
}

func fromDefinitions(source string) ([]Parameter, bool) {
	loc := definitionsDecl.FindStringIndex(source)
	if loc == nil {
		return nil, false
	}
	open := strings.IndexByte(source[loc[1]:], '[')
	if open < 0 {
		return nil, false
	}
	body, _, ok := balanced(source, loc[1]+open)
	if !ok {
		return nil, false
	}
	out := []Parameter{}
	for _, object := range topLevelObjects(body) {
		if p, ok := fromDefinition(fields(object)); ok {
			out = append(out, p)
		}
	}
	return out, true
}

func fromDefinition(f map[string]literal) (Parameter, bool) {
	name, ok := f["name"]
	if !ok || name.str == "" {
		return Parameter{}, false
	}
	typeToken := strings.ToLower(f["type"].str)
	initial, hasInitial := f["initial"]
	if !hasInitial {
		initial, hasInitial = f["default"]
	}

	p := Parameter{Name: name.str, Type: resolveType(typeToken, initial, hasInitial)}
	if caption, ok := f["caption"]; ok && caption.str != "" {
		p.Label = caption.str
	} else if label, ok := f["label"]; ok && label.str != "" {
		p.Label = label.str
	} else {
		p.Label = Label(name.str)
	}

	switch p.Type {
	case TypeNumber:
		v, _ := initial.number()
		p.Value = v
		p.Min = optionalNumber(f, "min")
		p.Max = optionalNumber(f, "max")
	case TypeBoolean:
		if checked, ok := f["checked"]; ok && !hasInitial {
			initial = checked
		}
		v, _ := initial.boolean()
		p.Value = v
	case TypeChoice:
		for _, v := range f["values"].elements() {
			p.Options = append(p.Options, v.str)
		}
		switch {
		case hasInitial:
			p.Value = initial.str
		case len(p.Options) > 0:
			p.Value = p.Options[0]
		default:
			p.Value = ""
		}
	default:
		p.Value = initial.str
	}

	p.Step = defaultStep(typeToken)
	if step, ok := f["step"].number(); ok && step > 0 {
		p.Step = step
	}
	return p, true
}

func resolveType(token string, initial literal, hasInitial bool) string {
	switch token {
	case "float", "int", "integer", "number", "slider":
		return TypeNumber
	case "text", "string", "url", "email", "password", "color":
		return TypeText
	case "checkbox", "bool", "boolean":
		return TypeBoolean
	case "choice", "select", "radio":
		return TypeChoice
	case "":
		if hasInitial {
			return inferType(initial)
		}
	}
	return TypeText
}

func defaultStep(typeToken string) float64 {
	if typeToken == "int" || typeToken == "integer" {
		return 1
	}
	return 0.1
}

func optionalNumber(f map[string]literal, key string) *float64 {
	v, ok := f[key].number()
	if !ok {
		return nil
	}
	return &v
}

func inferType(l literal) string {
	if _, ok := l.number(); ok {
		return TypeNumber
	}
	if _, ok := l.boolean(); ok {
		return TypeBoolean
	}
	return TypeText
}

func fromDestructuring(source string) []Parameter {
	out := []Parameter{}
	seen := make(map[string]bool)
	for i, re := range destructuringPatterns {
		for _, loc := range re.FindAllStringIndex(source, -1) {
			body, end, ok := balanced(source, loc[1]-1)
			if !ok {
				continue
			}
			// A const/let/var pattern only counts when it destructures params.
			if i == 0 && !paramsSource.MatchString(source[end+1:]) {
				continue
			}
			for _, entry := range splitTopLevel(body, ',') {
				p, ok := fromDefault(entry)
				if !ok || seen[p.Name] {
					continue
				}
				seen[p.Name] = true
				out = append(out, p)
			}
		}
	}
	return out
}

func fromDefault(entry string) (Parameter, bool) {
	eq := strings.IndexByte(entry, '=')
	if eq < 0 {
		return Parameter{}, false
	}
	name := strings.TrimSpace(entry[:eq])
	// { width: w = 10 } binds the property width.
	if colon := strings.IndexByte(name, ':'); colon >= 0 {
		name = strings.TrimSpace(name[:colon])
	}
	if !isIdentifier(name) {
		return Parameter{}, false
	}
	lit := parseLiteral(entry[eq+1:])
	if lit.raw == "" {
		return Parameter{}, false
	}

	p := Parameter{Name: name, Type: inferType(lit), Label: Label(name), Step: 0.1}
	switch p.Type {
	case TypeNumber:
		v, _ := lit.number()
		p.Value = v
		if !strings.ContainsAny(lit.raw, ".eE") {
			p.Step = 1
		}
	case TypeBoolean:
		p.Value, _ = lit.boolean()
	default:
		p.Value = lit.str
	}
	return p, true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// Label turns an identifier such as wallThickness or hole_count into a
// display label ("Wall Thickness", "Hole Count").
func Label(name string) string {
	var words []string
	var current []rune
	runes := []rune(name)
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	if len(words) == 0 {
		return name
	}
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(words, " "))
}

// Values returns the name to value map used as the default parameter object
// when evaluating a model.
func Values(defs []Parameter) map[string]any {
	out := make(map[string]any, len(defs))
	for _, p := range defs {
		out[p.Name] = p.Value
	}
	return out
}

// FormatValue renders a parameter value for display.
func FormatValue(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	}
	return ""
}
