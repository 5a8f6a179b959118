// Package tags normalizes user-facing tag and label strings so that list
// filters match regardless of case, diacritics, and dash/space variants.
package tags

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Pokémon" -> "Pokemon").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Normalize normalizes a tag for comparison (lowercase, no diacritics,
// dashes and underscores folded to spaces, surrounding whitespace trimmed).
func Normalize(tag string) string {
	tag = RemoveDiacritics(tag)
	tag = strings.ToLower(tag)
	tag = strings.ReplaceAll(tag, "-", " ")
	tag = strings.ReplaceAll(tag, "_", " ")
	return strings.TrimSpace(tag)
}

// Match reports whether the candidate tag matches the filter after both
// sides are normalized.
func Match(candidate, filter string) bool {
	return Normalize(candidate) == Normalize(filter)
}

// ContainsMatch reports whether any tag in the list matches the filter.
func ContainsMatch(list []string, filter string) bool {
	want := Normalize(filter)
	for _, tag := range list {
		if Normalize(tag) == want {
			return true
		}
	}
	return false
}
