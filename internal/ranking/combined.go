package ranking

import (
	"atslite/internal/candidates"
	"atslite/internal/filtering"
	"atslite/internal/plan"
)

// Combined is the result of filtering then ranking.
type Combined struct {
	Filtered     []candidates.Candidate `json:"filtered"`
	Ranked       []candidates.Candidate `json:"ranked"`
	RankedIDs    []int                  `json:"rankedIds"`
	MatchedCount int                    `json:"matchedCount"`
	TotalCount   int                    `json:"totalCount"`
}

// FilterAndRank applies the filter engine and feeds its output to the ranking
// engine.
func FilterAndRank(cands []candidates.Candidate, plans plan.Plans) Combined {
	filtered := filtering.ApplyFilters(cands, plans.Filter)
	ranked := ApplyRanking(filtered.Matched, plans.Rank)
	return Combined{
		Filtered:     filtered.Matched,
		Ranked:       ranked.Ranked,
		RankedIDs:    ranked.RankedIDs,
		MatchedCount: filtered.MatchedCount,
		TotalCount:   filtered.TotalCount,
	}
}
