// internal/app/system/search/search.go
package search

import (
	"strings"

	"github.com/dalemusser/planhub/internal/domain/models"
)

// MaxTerms caps how many words of a query are used.
const MaxTerms = 8

// Terms splits a free-text query into lowercased, de-duplicated words.
// An empty result means "no filter".
func Terms(q string) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range strings.Fields(strings.ToLower(q)) {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == MaxTerms {
			break
		}
	}
	return out
}

// MatchesPlan reports whether every term appears in the plan's title,
// description, place name, city or one of its tags.
func MatchesPlan(p models.Plan, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := []string{
		strings.ToLower(p.Title),
		strings.ToLower(p.Description),
		strings.ToLower(p.Location.Name),
		strings.ToLower(p.Location.City),
	}
	for _, t := range p.Tags {
		haystack = append(haystack, strings.ToLower(t))
	}

	for _, term := range terms {
		if !containsAny(haystack, term) {
			return false
		}
	}
	return true
}

func containsAny(fields []string, term string) bool {
	for _, f := range fields {
		if strings.Contains(f, term) {
			return true
		}
	}
	return false
}
