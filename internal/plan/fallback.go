package plan

import "strings"

// NoMatchSentinel is a title term no candidate carries; the fallback plan uses
// it so an uninterpretable query returns nothing rather than everything.
const NoMatchSentinel = "__NO_MATCH__"

// Fallback derives a conservative plan from keywords when no model plan is
// available. The filter matches nobody; only the ranking reflects the query.
func Fallback(query string) Plans {
	q := strings.ToLower(query)

	field, dir := "years_experience", Desc
	switch {
	case containsAny(q, "experience", "senior", "lead"):
		field, dir = "years_experience", Desc
	case containsAny(q, "salary", "pay"):
		field, dir = "desired_salary_usd", Desc
	case containsAny(q, "available", "start"):
		field, dir = "availability_weeks", Asc
	}

	return Plans{
		Filter: &FilterPlan{Include: NewCriteria().Match("title", NoMatchSentinel)},
		Rank:   By(field, dir),
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
