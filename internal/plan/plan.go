// Package plan defines the declarative filter and ranking plans consumed by
// the engines, and everything needed to obtain a trustworthy plan from JSON.
package plan

import (
	"fmt"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid reports whether d is one of the two allowed literals.
func (d Direction) Valid() bool {
	return d == Asc || d == Desc
}

// Criterion names a field and the direction to sort it in.
type Criterion struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

func (c Criterion) String() string {
	return fmt.Sprintf("%s (%s)", c.Field, c.Direction)
}

// RankingPlan orders candidates by Primary, then by each tie-breaker in turn.
type RankingPlan struct {
	Primary     *Criterion  `json:"primary,omitempty"`
	TieBreakers []Criterion `json:"tie_breakers,omitempty"`
}

// IsEmpty reports whether the plan leaves the input order untouched.
func (p *RankingPlan) IsEmpty() bool {
	return p == nil || p.Primary == nil
}

// Criteria returns the primary criterion followed by the tie-breakers.
func (p *RankingPlan) Criteria() []Criterion {
	if p.IsEmpty() {
		return nil
	}
	out := make([]Criterion, 0, 1+len(p.TieBreakers))
	out = append(out, *p.Primary)
	return append(out, p.TieBreakers...)
}

func (p *RankingPlan) String() string {
	if p.IsEmpty() {
		return "input order"
	}
	parts := make([]string, 0, 1+len(p.TieBreakers))
	for _, c := range p.Criteria() {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ", then ")
}

// By builds a ranking plan from a primary criterion and tie-breakers.
func By(field string, dir Direction, tieBreakers ...Criterion) *RankingPlan {
	return &RankingPlan{
		Primary:     &Criterion{Field: field, Direction: dir},
		TieBreakers: tieBreakers,
	}
}

// Then is shorthand for a tie-breaker criterion.
func Then(field string, dir Direction) Criterion {
	return Criterion{Field: field, Direction: dir}
}

// FilterPlan holds include and exclude criteria. Either may be nil.
type FilterPlan struct {
	Include *Criteria `json:"include,omitempty"`
	Exclude *Criteria `json:"exclude,omitempty"`
}

// IsEmpty reports whether the plan keeps every candidate.
func (p *FilterPlan) IsEmpty() bool {
	return p == nil || (p.Include.IsEmpty() && p.Exclude.IsEmpty())
}

// UnknownKeys lists include and exclude keys the engine ignores.
func (p *FilterPlan) UnknownKeys() []string {
	if p == nil {
		return nil
	}
	var keys []string
	if p.Include != nil {
		for _, k := range p.Include.Unknown {
			keys = append(keys, "include."+k)
		}
	}
	if p.Exclude != nil {
		for _, k := range p.Exclude.Unknown {
			keys = append(keys, "exclude."+k)
		}
	}
	return keys
}

// Plans is the two-key object produced per query.
type Plans struct {
	Filter *FilterPlan  `json:"filter"`
	Rank   *RankingPlan `json:"rank"`
}
