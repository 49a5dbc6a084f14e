package index

import (
	"strings"
	"unicode"
)

// maxTokenLen is the longest token kept, in bytes.
const maxTokenLen = 64

// Tokenize lowercases text and splits it on every rune that is not a letter
// or digit. Tokens longer than maxTokenLen bytes (base64 blobs, hashes) are
// dropped. Documents and queries go through the same rule, so such a term
// is never indexed and a query made only of such terms ranks nothing.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) <= maxTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// uniqueTerms tokenizes a query and removes repeats, keeping first-seen order.
func uniqueTerms(query string) []string {
	tokens := Tokenize(query)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
