// Package matching holds the text primitives shared by the filter and ranking
// engines: normalization, tokenization of multi-value fields and match terms.
package matching

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	punctuation   = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)
)

// Normalize case-folds s, trims it, collapses whitespace runs to one space and
// strips punctuation and symbols. Letters in any script are kept.
func Normalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = whitespaceRun.ReplaceAllString(s, " ")
	return punctuation.ReplaceAllString(s, "")
}

// Separator joins the tokens of a multi-value field.
const Separator = ";"

// Tokenize splits a multi-value field into trimmed, non-empty tokens.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, Separator)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// ParseBool reads a boolean-as-text value: "yes", "true" and "1" are true,
// anything else is false.
func ParseBool(s string) bool {
	switch Normalize(s) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}
