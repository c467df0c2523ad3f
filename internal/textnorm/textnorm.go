// Package textnorm folds visitor text for matching: lower case, no accents,
// collapsed whitespace, typographic apostrophes made plain.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'", "´", "'")

// Fold returns s lower-cased with diacritics removed and runs of whitespace
// collapsed to one space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = apostrophes.Replace(strings.ToLower(out))
	return strings.Join(strings.Fields(out), " ")
}

// Equal reports whether a and b are the same once folded.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Contains reports whether folded s contains folded substr.
func Contains(s, substr string) bool {
	return strings.Contains(Fold(s), Fold(substr))
}

// ContainsAny reports whether folded s contains any of the already folded
// phrases.
func ContainsAny(folded string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(folded, p) {
			return true
		}
	}
	return false
}

// Words splits folded text into words, dropping punctuation.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}
