package match

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent decomposes characters and removes combining marks, so that
// "Pokémon" and "Pokemon" tokenize identically.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Tokenize normalizes a title into a set of comparison tokens: diacritics
// stripped, case folded, non-alphanumeric runs treated as separators,
// "vol"/"vols" normalized to "volume", single-character tokens dropped unless
// they are digits. Duplicates are irrelevant, hence the set.
func Tokenize(s string) map[string]struct{} {
	if stripped, _, err := transform.String(deaccent, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	set := make(map[string]struct{})
	for _, tok := range strings.Fields(b.String()) {
		switch tok {
		case "vol", "vols", "volumes":
			tok = "volume"
		}
		if utf8.RuneCountInString(tok) == 1 && !isDigitToken(tok) {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

func isDigitToken(tok string) bool {
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(tok) > 0
}

// StrictScore is the shared-token ratio against the larger of the two sets,
// penalizing both missing and extraneous tokens. Zero if either side is empty.
func StrictScore(expected, actual map[string]struct{}) float64 {
	if len(expected) == 0 || len(actual) == 0 {
		return 0
	}
	denom := len(expected)
	if len(actual) > denom {
		denom = len(actual)
	}
	return float64(intersection(expected, actual)) / float64(denom)
}

// RequiredScore is coverage of the required set only; extra tokens in the
// actual title do not count against the candidate.
func RequiredScore(required, actual map[string]struct{}) float64 {
	if len(required) == 0 || len(actual) == 0 {
		return 0
	}
	return float64(intersection(required, actual)) / float64(len(required))
}

func intersection(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			n++
		}
	}
	return n
}
