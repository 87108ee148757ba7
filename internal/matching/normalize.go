package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFD decomposition, so that
// "Café" and "Cafe" normalize identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips diacritics and punctuation, and collapses
// whitespace. Comparisons in the engine only ever see normalized strings.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}

	var b strings.Builder
	b.Grow(len(out))
	lastSpace := true
	for _, r := range strings.ToLower(out) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// tokens returns the normalized word set of s.
func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(Normalize(s)) {
		set[t] = struct{}{}
	}
	return set
}

// jaccard is the similarity of two token sets. Empty-vs-empty is 1,
// empty-vs-nonempty is 0.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// authorTokens flattens an author list into one token set, so comparisons
// are order-insensitive and tolerant of "Surname, Given" inversions.
func authorTokens(authors []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, a := range authors {
		for t := range tokens(a) {
			set[t] = struct{}{}
		}
	}
	return set
}
