package store

import (
	"strings"
	"unicode"
)

// stopWords are dropped from full-text queries; they match nearly every document.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "with": {}, "what": {},
	"how": {}, "can": {}, "does": {}, "this": {}, "that": {}, "you": {}, "your": {},
	"use": {}, "about": {}, "from": {}, "have": {}, "has": {}, "any": {}, "should": {},
}

// matchExpression turns free text into an FTS5 MATCH expression that ORs the
// quoted query terms. It returns "" when no usable term remains.
func matchExpression(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}
