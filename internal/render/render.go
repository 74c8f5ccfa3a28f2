// Package render substitutes {{name}} placeholders in note templates.
package render

import "regexp"

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces every placeholder with its value from vars. A name missing
// from vars renders as the empty string.
func Render(template string, vars map[string]string) string {
	if template == "" {
		return ""
	}
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		return vars[name]
	})
}

// VariableNames lists the distinct placeholder names in order of first use.
func VariableNames(template string) []string {
	matches := placeholder.FindAllStringSubmatch(template, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// References reports whether the template uses the named placeholder.
func References(template, name string) bool {
	for _, n := range VariableNames(template) {
		if n == name {
			return true
		}
	}
	return false
}
