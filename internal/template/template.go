// Package template substitutes ${name} placeholders in request templates.
package template

import "regexp"

// placeholderPattern matches ${name}. Names cannot contain a closing brace,
// so placeholders never nest.
var placeholderPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// Bindings maps placeholder names to substitution values.
// A Bindings value is built for a single validation attempt and is never
// shared between attempts.
type Bindings map[string]string

// Escaper transforms a bound value before it is written into the output.
type Escaper func(string) string

// Substitute replaces every ${name} in tmpl with its bound value.
//
// A placeholder whose name has no binding is replaced by the bare name, so
// "${x}" with no binding for x becomes "x". Replacement text is never scanned
// again.
func Substitute(tmpl string, b Bindings) string {
	return SubstituteEscaped(tmpl, b, nil)
}

// SubstituteEscaped is Substitute with esc applied to bound values. Unbound
// names are written unescaped. A nil esc writes values as-is.
func SubstituteEscaped(tmpl string, b Bindings, esc Escaper) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[2 : len(match)-1]
		value, ok := b[name]
		if !ok {
			return name
		}
		if esc != nil {
			return esc(value)
		}
		return value
	})
}

// Names returns the placeholder names referenced by tmpl, in order of first
// appearance.
func Names(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}
