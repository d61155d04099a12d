package ranking

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atslite/internal/candidates"
	"atslite/internal/plan"
)

func pool() []candidates.Candidate {
	return []candidates.Candidate{
		{ID: 3, FullName: "Émile Zola", Location: "Paris, France", YearsExperience: candidates.Int(8), DesiredSalaryUSD: candidates.Int(90000)},
		{ID: 1, FullName: "ada Lovelace", Location: "London", YearsExperience: candidates.Int(8), DesiredSalaryUSD: candidates.Int(70000)},
		{ID: 4, FullName: "Grace Hopper", Location: "New York", DesiredSalaryUSD: candidates.Int(80000)},
		{ID: 2, FullName: "Alan Turing", Location: "london", YearsExperience: candidates.Int(12)},
		{ID: 5, FullName: "Edsger Dijkstra", Location: "Austin", YearsExperience: candidates.Int(3), DesiredSalaryUSD: candidates.Int(70000)},
	}
}

func TestApplyRankingIdentity(t *testing.T) {
	cands := pool()

	for name, p := range map[string]*plan.RankingPlan{
		"nil plan":   nil,
		"no primary": {TieBreakers: []plan.Criterion{plan.Then("full_name", plan.Asc)}},
	} {
		t.Run(name, func(t *testing.T) {
			res := ApplyRanking(cands, p)
			assert.Equal(t, []int{3, 1, 4, 2, 5}, res.RankedIDs)
			assert.Equal(t, cands, res.Ranked)
		})
	}
}

func TestApplyRanking(t *testing.T) {
	tests := []struct {
		name string
		plan *plan.RankingPlan
		want []int
	}{
		{
			name: "years desc, null last, id breaks ties",
			plan: plan.By("years_experience", plan.Desc),
			want: []int{2, 1, 3, 5, 4},
		},
		{
			name: "years asc keeps null last",
			plan: plan.By("years_experience", plan.Asc),
			want: []int{5, 1, 3, 2, 4},
		},
		{
			name: "salary tie-breaker",
			plan: plan.By("years_experience", plan.Desc, plan.Then("desired_salary_usd", plan.Asc)),
			want: []int{2, 1, 3, 5, 4},
		},
		{
			name: "salary tie-breaker desc",
			plan: plan.By("years_experience", plan.Desc, plan.Then("desired_salary_usd", plan.Desc)),
			want: []int{2, 3, 1, 5, 4},
		},
		{
			name: "salary desc with missing salary last",
			plan: plan.By("desired_salary_usd", plan.Desc),
			want: []int{3, 4, 1, 5, 2},
		},
		{
			name: "names ignore case and accents",
			plan: plan.By("full_name", plan.Asc),
			want: []int{1, 2, 5, 3, 4},
		},
		{
			name: "location normalized so case ties fall to id",
			plan: plan.By("location", plan.Asc),
			want: []int{5, 1, 2, 4, 3},
		},
		{
			name: "unknown field compares equal",
			plan: plan.By("shoe_size", plan.Desc),
			want: []int{1, 2, 3, 4, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ApplyRanking(pool(), tt.plan)
			assert.Equal(t, tt.want, res.RankedIDs)
			assert.Equal(t, tt.want, candidates.IDs(res.Ranked))
		})
	}
}

func TestTieBreakerCascade(t *testing.T) {
	cands := []candidates.Candidate{
		{ID: 1, YearsExperience: candidates.Int(10), DesiredSalaryUSD: candidates.Int(150000)},
		{ID: 2, YearsExperience: candidates.Int(10), DesiredSalaryUSD: candidates.Int(110000)},
	}
	p := plan.By("years_experience", plan.Desc, plan.Then("desired_salary_usd", plan.Asc))

	assert.Equal(t, []int{2, 1}, ApplyRanking(cands, p).RankedIDs)
}

func TestNullSortsLastInBothDirections(t *testing.T) {
	cands := []candidates.Candidate{
		{ID: 1},
		{ID: 2, YearsExperience: candidates.Int(4)},
	}

	for _, dir := range []plan.Direction{plan.Asc, plan.Desc} {
		t.Run(string(dir), func(t *testing.T) {
			assert.Equal(t, []int{2, 1}, ApplyRanking(cands, plan.By("years_experience", dir)).RankedIDs)
		})
	}
}

func TestRankingIsIdempotent(t *testing.T) {
	for _, name := range plan.PresetNames() {
		t.Run(name, func(t *testing.T) {
			p, ok := plan.Preset(name)
			require.True(t, ok)

			once := ApplyRanking(pool(), p)
			twice := ApplyRanking(once.Ranked, p)
			assert.Equal(t, once.RankedIDs, twice.RankedIDs)
		})
	}
}

func TestRankingIsDeterministicAcrossPermutations(t *testing.T) {
	p := plan.By("desired_salary_usd", plan.Asc, plan.Then("location", plan.Asc))
	want := ApplyRanking(pool(), p).RankedIDs

	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 25 {
		cands := pool()
		rng.Shuffle(len(cands), func(a, b int) { cands[a], cands[b] = cands[b], cands[a] })
		assert.Equal(t, want, ApplyRanking(cands, p).RankedIDs, "permutation %d", i)
	}
}

func TestApplyRankingDoesNotMutateInput(t *testing.T) {
	cands := pool()
	before := slices.Clone(cands)

	ApplyRanking(cands, plan.By("full_name", plan.Asc))
	assert.Equal(t, before, cands)
}

func TestRankByIDs(t *testing.T) {
	idx := candidates.NewIndex(pool())
	res := RankByIDs([]int{5, 99, 2, 1}, idx, plan.By("years_experience", plan.Desc))
	assert.Equal(t, []int{2, 1, 5}, res.RankedIDs)
}
