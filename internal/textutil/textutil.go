// Package textutil holds the text normalization shared by the matchers.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s, trims it and collapses internal whitespace runs
// to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Fold removes diacritics: "Désignation" becomes "Designation".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Truncate cuts s to at most n runes. When cut, the last rune is replaced by
// suffix if one is given.
func Truncate(s string, n int, suffix string) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	if suffix == "" {
		return string(r[:n]), true
	}
	keep := n - len([]rune(suffix))
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + suffix, true
}
