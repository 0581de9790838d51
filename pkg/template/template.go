// Package template renders the {{token}} placeholders used in message bodies,
// webhook payloads and condition fields.
package template

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\-]+)\s*\}\}`)

// Render replaces every {{token}} in text with its value in data. Unknown
// tokens render as the empty string.
func Render(text string, data map[string]string) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	return tokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := tokenPattern.FindStringSubmatch(match)[1]

		return data[key]
	})
}

// RenderValue renders strings found anywhere inside v, including nested maps
// and slices. Non-string leaves are returned unchanged.
func RenderValue(v any, data map[string]string) any {
	switch val := v.(type) {
	case string:
		return Render(val, data)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = RenderValue(item, data)
		}

		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = Render(item, data)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = RenderValue(item, data)
		}

		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = Render(item, data)
		}

		return out
	default:
		return v
	}
}

// Tokens lists the distinct tokens referenced by text, sorted.
func Tokens(text string) []string {
	seen := map[string]struct{}{}

	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}

	tokens := make([]string, 0, len(seen))
	for t := range seen {
		tokens = append(tokens, t)
	}

	sort.Strings(tokens)

	return tokens
}

// Coerce converts a rendered string into a number or boolean when it parses as
// one, so comparisons behave numerically. Everything else stays a string.
func Coerce(s string) any {
	trimmed := strings.TrimSpace(s)

	if num, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return num
	}

	if b, err := strconv.ParseBool(trimmed); err == nil {
		return b
	}

	return s
}
