package plan

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"atslite/internal/errors"
)

const (
	MinQueryLength = 3
	MaxQueryLength = 500
)

// Queries made only of non-letters, or with one character repeated more than
// ten times in a row, are rejected before reaching the model.
var suspiciousQueries = []*regexp2.Regexp{
	regexp2.MustCompile(`^[^a-zA-Z]*$`, regexp2.ECMAScript),
	regexp2.MustCompile(`(.)\1{10,}`, regexp2.ECMAScript),
}

// ValidateQuery checks a natural-language query and returns it trimmed.
func ValidateQuery(query string, headers []string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidQuery, "User query is required and cannot be empty", nil)
	}
	if len(headers) == 0 {
		return "", errors.NewValidationError(errors.ErrCodeInvalidQuery, "CSV headers are required for query processing", nil)
	}

	n := utf8.RuneCountInString(trimmed)
	if n < MinQueryLength {
		return "", errors.NewValidationError(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("Query too short. Minimum %d characters required", MinQueryLength), nil)
	}
	if n > MaxQueryLength {
		return "", errors.NewValidationError(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("Query too long. Maximum %d characters allowed", MaxQueryLength), nil)
	}

	for _, re := range suspiciousQueries {
		if ok, err := re.MatchString(trimmed); err == nil && ok {
			return "", errors.NewValidationError(errors.ErrCodeInvalidQuery, "Invalid query format detected", nil).
				WithContext("pattern", re.String())
		}
	}

	return trimmed, nil
}
