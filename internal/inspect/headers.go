// Package inspect contains helpers for making sense of real-world
// source files before parsing proper.
//
// The loan and bank exports this pipeline consumes come from Brazilian
// systems whose delimited files carry Portuguese headers with diacritics
// and mixed casing ("Código_Banco", "Situação"). CanonicalHeader folds
// those into stable snake_case keys so header maps and extractors match
// regardless of export vintage.
package inspect

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CanonicalHeader normalizes one header cell: diacritics folded to
// ASCII, lowercased, separators collapsed to single underscores, and
// anything else dropped.
func CanonicalHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				prevUnderscore = true
			}
		default:
			// drop anything else
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// CanonicalHeaders applies CanonicalHeader to every cell.
func CanonicalHeaders(hs []string) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = CanonicalHeader(h)
	}
	return out
}
