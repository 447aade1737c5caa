package ruleengine

import (
	"fmt"
	"regexp"
	"strings"
)

// templateVariablePattern matches {{dotted.path}} placeholders, non-greedy
// so adjacent placeholders on one line resolve independently.
var templateVariablePattern = regexp.MustCompile(`\{\{(.+?)\}\}`)

// RenderTemplate substitutes every {{dotted.path}} placeholder in template
// with the string form of the value Lookup resolves against obj. A path
// that resolves to nil, or does not resolve at all, substitutes the empty
// string. A template with no placeholders is returned unchanged.
func RenderTemplate(template string, obj any) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return templateVariablePattern.ReplaceAllStringFunc(template, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		value, ok := Lookup(obj, path)
		if !ok || value == nil {
			return ""
		}
		return fmt.Sprint(value)
	})
}
