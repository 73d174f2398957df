package format

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iksnae/chat-session/internal"
)

// minTokenLen is the rune length a word must exceed to count as a token
const minTokenLen = 3

// MatchReference finds the reference a header refers to. An exact
// case-insensitive match on title or section wins; otherwise a reference
// matches when the header's tokens overlap a field by at least
// min(2, 0.6 × header tokens). The first match in list order is returned.
func MatchReference(header string, refs []internal.Reference) (internal.Reference, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return internal.Reference{}, false
	}

	for _, ref := range refs {
		if equalFoldNonEmpty(header, ref.Title) || equalFoldNonEmpty(header, ref.Section) {
			return ref, true
		}
	}

	headerTokens := tokenize(header)
	if len(headerTokens) == 0 {
		return internal.Reference{}, false
	}
	threshold := math.Min(2, 0.6*float64(len(headerTokens)))

	for _, ref := range refs {
		if float64(overlap(headerTokens, tokenize(ref.Title))) >= threshold ||
			float64(overlap(headerTokens, tokenize(ref.Section))) >= threshold {
			return ref, true
		}
	}
	return internal.Reference{}, false
}

func equalFoldNonEmpty(a, b string) bool {
	b = strings.TrimSpace(b)
	return b != "" && strings.EqualFold(a, b)
}

// tokenize returns the distinct lowercase words longer than minTokenLen runes
func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if utf8.RuneCountInString(w) > minTokenLen {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}
