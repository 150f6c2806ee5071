// Package htmlsanitize strips markup from user-supplied text. Plan fields
// and chat bodies are stored as plain text; clients decide how to render.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag and attribute.
var strict = bluemonday.StrictPolicy()

// PlainText returns s with all HTML removed and surrounding whitespace
// trimmed. Entities are decoded so "fish &amp; chips" stays readable.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// PlainTextAll applies PlainText to each entry and drops entries that end
// up empty.
func PlainTextAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := PlainText(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}
