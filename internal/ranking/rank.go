// Package ranking orders candidates by a ranking plan with a deterministic
// id-based final tie-breaker.
package ranking

import (
	"bytes"
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"atslite/internal/candidates"
	"atslite/internal/matching"
	"atslite/internal/plan"
)

// Result is the outcome of ApplyRanking.
type Result struct {
	Ranked    []candidates.Candidate `json:"ranked"`
	RankedIDs []int                  `json:"rankedIds"`
}

// Collation is the locale used for string ordering.
var Collation = language.English

type sortKey struct {
	field candidates.Field
	desc  bool
}

type cell struct {
	value candidates.Value
	// collation key of the normalized string; nil for non-strings
	key []byte
}

type row struct {
	cand  candidates.Candidate
	cells []cell
}

// ApplyRanking returns a sorted copy of cands. With a nil plan or no primary
// criterion the input order is kept. Criteria naming unknown fields compare
// equal, so they never reorder anything.
func ApplyRanking(cands []candidates.Candidate, p *plan.RankingPlan) Result {
	if p.IsEmpty() {
		ranked := slices.Clone(cands)
		return Result{Ranked: ranked, RankedIDs: candidates.IDs(ranked)}
	}

	var keys []sortKey
	for _, c := range p.Criteria() {
		if f, ok := candidates.LookupField(c.Field); ok {
			keys = append(keys, sortKey{field: f, desc: c.Direction == plan.Desc})
		}
	}

	col := collate.New(Collation)
	var buf collate.Buffer
	rows := make([]row, len(cands))
	for i := range cands {
		rows[i] = row{cand: cands[i], cells: make([]cell, len(keys))}
		for j, k := range keys {
			v := k.field.Value(&cands[i])
			ce := cell{value: v}
			if v.Kind() == candidates.ValueString {
				ce.key = col.KeyFromString(&buf, matching.Normalize(v.Str()))
			}
			rows[i].cells[j] = ce
		}
	}

	slices.SortStableFunc(rows, func(a, b row) int {
		for j, k := range keys {
			if c := compareCells(col, a.cells[j], b.cells[j], k.desc); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.cand.ID, b.cand.ID)
	})

	ranked := make([]candidates.Candidate, len(rows))
	for i, r := range rows {
		ranked[i] = r.cand
	}
	return Result{Ranked: ranked, RankedIDs: candidates.IDs(ranked)}
}

// compareCells orders two values of one criterion. Null sorts last in both
// directions; desc negates every other comparison.
func compareCells(col *collate.Collator, a, b cell, desc bool) int {
	an, bn := a.value.IsNull(), b.value.IsNull()
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}

	var c int
	switch {
	case a.key != nil && b.key != nil:
		c = bytes.Compare(a.key, b.key)
	case a.value.Kind() == candidates.ValueNumber && b.value.Kind() == candidates.ValueNumber:
		c = cmp.Compare(a.value.Num(), b.value.Num())
	default:
		c = col.CompareString(a.value.String(), b.value.String())
	}

	if desc {
		return -c
	}
	return c
}

// RankByIDs ranks the records behind ids, resolved through lookup. Ids the
// lookup does not know are dropped.
func RankByIDs(ids []int, lookup candidates.Lookup, p *plan.RankingPlan) Result {
	return ApplyRanking(candidates.Resolve(ids, lookup), p)
}
