// Package templates implements the {{Placeholder}} substitution engine used
// for per-recipient personalization of subjects, bodies and sender fields.
package templates

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// placeholderPattern matches {{ Var Name }} with optional inner whitespace.
	placeholderPattern = regexp.MustCompile(`\{\{\s*([\w\s.-]+?)\s*\}\}`)
	nonWordPattern     = regexp.MustCompile(`\W+`)
)

// Normalize converts a raw column or placeholder name into a safe template
// key: runs of non-word characters become underscores, leading/trailing
// underscores are trimmed and a leading digit is escaped. An empty result gets
// a generated fallback name, unique enough within one ingestion batch.
func Normalize(name string) string {
	n := nonWordPattern.ReplaceAllString(strings.TrimSpace(name), "_")
	n = strings.Trim(n, "_")
	if n == "" {
		return "column_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}
	if n[0] >= '0' && n[0] <= '9' {
		n = "_" + n
	}
	return n
}

// Key returns the case-folded lookup key for a raw name. Render and Lookup
// fold both sides of the comparison through it, so {{Name}} resolves against
// a context key of "name" or "NAME" alike.
func Key(name string) string {
	return strings.ToLower(Normalize(name))
}

// Render substitutes every placeholder in template with the matching value
// from context. Names missing from the context leave the placeholder text
// unchanged: a single absent field must not abort the whole render.
func Render(template string, context map[string]string) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	folded := foldContext(context)
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		if v, ok := folded[Key(sub[1])]; ok {
			return v
		}
		return match
	})
}

// Lookup fetches a context value by name using the same normalization and
// case folding as Render.
func Lookup(context map[string]string, name string) (string, bool) {
	v, ok := foldContext(context)[Key(name)]
	return v, ok
}

// Placeholders returns the raw placeholder names appearing in template, in
// order of appearance.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	if matches == nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func foldContext(context map[string]string) map[string]string {
	folded := make(map[string]string, len(context))
	for k, v := range context {
		key := Key(k)
		if _, exists := folded[key]; !exists {
			folded[key] = v
		}
	}
	return folded
}
