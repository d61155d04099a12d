// Package filtering decides, per candidate, whether it survives a filter plan.
package filtering

import (
	"slices"

	"atslite/internal/candidates"
	"atslite/internal/matching"
	"atslite/internal/plan"
)

// Result is the outcome of ApplyFilters. Matched keeps input order.
type Result struct {
	Matched      []candidates.Candidate `json:"matched"`
	MatchedCount int                    `json:"matchedCount"`
	TotalCount   int                    `json:"totalCount"`
}

// ApplyFilters returns the candidates that trip no exclude rule and satisfy
// every include rule. A nil or empty plan keeps everyone. The input slice is
// never modified.
func ApplyFilters(cands []candidates.Candidate, p *plan.FilterPlan) Result {
	if p.IsEmpty() {
		matched := slices.Clone(cands)
		return Result{Matched: matched, MatchedCount: len(matched), TotalCount: len(cands)}
	}

	matched := make([]candidates.Candidate, 0, len(cands))
	for i := range cands {
		if Keep(&cands[i], p) {
			matched = append(matched, cands[i])
		}
	}
	return Result{Matched: matched, MatchedCount: len(matched), TotalCount: len(cands)}
}

// Keep evaluates a single candidate. Exclusion is checked first and wins.
func Keep(c *candidates.Candidate, p *plan.FilterPlan) bool {
	if p == nil {
		return true
	}
	if Excluded(c, p.Exclude) {
		return false
	}
	return Included(c, p.Include)
}

// Excluded reports whether c matches any exclude rule on any field. Only text
// and multi-value fields take part in exclusion.
func Excluded(c *candidates.Candidate, crit *plan.Criteria) bool {
	if crit.IsEmpty() {
		return false
	}

	for _, name := range plan.TextFields {
		if terms, ok := crit.Terms[name]; ok && terms.Any(textOf(c, name)) {
			return true
		}
	}
	for _, name := range plan.MultiValueFields {
		if terms, ok := crit.Terms[name]; ok && terms.AnyToken(matching.Tokenize(textOf(c, name))) {
			return true
		}
	}
	return false
}

// Included reports whether c satisfies every include rule.
func Included(c *candidates.Candidate, crit *plan.Criteria) bool {
	if crit.IsEmpty() {
		return true
	}

	for _, name := range plan.TextFields {
		if terms, ok := crit.Terms[name]; ok && !terms.Any(textOf(c, name)) {
			return false
		}
	}

	// every term must be present among the tokens
	for _, name := range plan.MultiValueFields {
		if terms, ok := crit.Terms[name]; ok && !terms.AllTokens(matching.Tokenize(textOf(c, name))) {
			return false
		}
	}

	for _, name := range plan.RangeFields {
		r, ok := crit.Ranges[name]
		if !ok {
			continue
		}
		value, present := candidates.MustField(name).Number(c)
		if !r.Contains(value, present) {
			return false
		}
	}

	for _, name := range plan.BoolFields {
		want, ok := crit.Bools[name]
		if ok && matching.ParseBool(textOf(c, name)) != want {
			return false
		}
	}

	return true
}

func textOf(c *candidates.Candidate, name string) string {
	return candidates.MustField(name).Text(c)
}
