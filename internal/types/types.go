// Package types holds the command results shared by the CLI and the output
// formatters.
package types

import (
	"atslite/internal/candidates"
	"atslite/internal/plan"
	"atslite/internal/stats"
)

// QueryResult is the outcome of one recruiter query run to completion.
type QueryResult struct {
	Query        string                 `json:"query"`
	Plans        plan.Plans             `json:"plans"`
	TotalCount   int                    `json:"totalCount"`
	MatchedCount int                    `json:"matchedCount"`
	RankedIDs    []int                  `json:"rankedIds"`
	Top          []candidates.Candidate `json:"top"`
	Stats        *stats.Stats           `json:"stats,omitempty"`
	Summary      string                 `json:"summary"`
	DurationMS   int64                  `json:"durationMs"`
}

// ValidationReport describes a checked CSV or plan file.
type ValidationReport struct {
	Source   string   `json:"source"`
	Kind     string   `json:"kind"`
	Valid    bool     `json:"valid"`
	Records  int      `json:"records,omitempty"`
	Size     string   `json:"size,omitempty"`
	Headers  []string `json:"headers,omitempty"`
	Problems []string `json:"problems,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
