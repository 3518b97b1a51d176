package gnssio

import (
	"fmt"
	"regexp"
	"strings"
)

var templateVarPattern = regexp.MustCompile(`\{([a-zA-Z][a-zA-Z0-9]*)\}`)

// Template is a file name pattern with {variable} placeholders, e.g.
// "biases/signalBias.{prn}.json". Recognized variables are supplied at
// expansion time; an unknown placeholder is an error so that typos in
// configured templates surface immediately instead of producing wrong paths.
type Template string

// IsSet reports whether the template is non-empty.
func (t Template) IsSet() bool { return t != "" }

// Expand substitutes every {variable} placeholder from vars.
func (t Template) Expand(vars map[string]string) (string, error) {
	var missing []string
	out := templateVarPattern.ReplaceAllStringFunc(string(t), func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		missing = append(missing, name)
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template %q: unknown variable(s) %s", t, strings.Join(missing, ", "))
	}
	return out, nil
}

// ExpandStation expands a single-variable {station} template.
func (t Template) ExpandStation(station string) (string, error) {
	return t.Expand(map[string]string{"station": station})
}

// ExpandPRN expands a single-variable {prn} template.
func (t Template) ExpandPRN(prn string) (string, error) {
	return t.Expand(map[string]string{"prn": prn})
}
