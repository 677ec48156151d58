package retriever

import (
	"strings"
	"unicode"
)

// minTermLen drops single-character fragments from keyword queries.
const minTermLen = 2

// normalizeTerms lowercases the query, splits it on non-alphanumeric runes,
// and drops terms shorter than minTermLen. Returns nil when nothing usable
// remains.
func normalizeTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < minTermLen {
			continue
		}
		terms = append(terms, f)
	}
	if len(terms) == 0 {
		return nil
	}
	return terms
}
