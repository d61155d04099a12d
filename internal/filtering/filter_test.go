package filtering

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atslite/internal/candidates"
	"atslite/internal/plan"
)

func fixtures() []candidates.Candidate {
	return []candidates.Candidate{
		{
			ID: 12, FullName: "Quinn Williams", Title: "Senior Backend Engineer", Location: "Cyprus",
			YearsExperience: candidates.Int(19), Skills: "Spring;Kubernetes;JavaScript;TypeScript;React",
			Languages: "English;Greek", DesiredSalaryUSD: candidates.Int(120000), AvailabilityWeeks: candidates.Int(2),
			WillingToRelocate: "Yes", OpenToContract: "No", WorkPreference: "Remote", Tags: "backend;cloud",
		},
		{
			ID: 5, FullName: "Jess Garcia", Title: "Frontend Engineer", Location: "Berlin, Germany",
			YearsExperience: candidates.Int(8), Skills: "FastAPI;Ruby;GCP;Spring;Node.js;GraphQL;Angular;React",
			Languages: "English;German", DesiredSalaryUSD: candidates.Int(95000), AvailabilityWeeks: candidates.Int(6),
			WillingToRelocate: "No", OpenToContract: "Yes", WorkPreference: "Hybrid", Tags: "frontend",
		},
		{
			ID: 7, FullName: "Ari Chen", Title: "Data Engineer", Location: "USA",
			Skills: "Python;AWS", Languages: "English", WillingToRelocate: "yes", OpenToContract: "true",
			WorkPreference: "Onsite",
		},
	}
}

func decode(t *testing.T, raw string) *plan.FilterPlan {
	t.Helper()
	var fp plan.FilterPlan
	require.NoError(t, json.Unmarshal([]byte(raw), &fp))
	return &fp
}

func TestApplyFiltersIdentity(t *testing.T) {
	cands := fixtures()

	for name, p := range map[string]*plan.FilterPlan{
		"nil plan":      nil,
		"empty plan":    {},
		"empty include": {Include: plan.NewCriteria(), Exclude: plan.NewCriteria()},
		"unknown keys":  decode(t, `{"include": {"shoe_size": 42}}`),
	} {
		t.Run(name, func(t *testing.T) {
			res := ApplyFilters(cands, p)
			assert.Equal(t, cands, res.Matched)
			assert.Equal(t, 3, res.MatchedCount)
			assert.Equal(t, 3, res.TotalCount)
		})
	}
}

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name string
		plan string
		want []int
	}{
		{name: "single skill", plan: `{"include": {"skills": ["React"]}}`, want: []int{12, 5}},
		{name: "all skills present", plan: `{"include": {"skills": ["React", "Node.js"]}}`, want: []int{5}},
		{name: "skill pattern", plan: `{"include": {"skills": ["/^Node\\.js$/", "react"]}}`, want: []int{5}},
		{name: "one skill absent", plan: `{"include": {"skills": ["React", "Python"]}}`, want: []int{}},
		{name: "title pattern", plan: `{"include": {"title": "/Backend/i"}}`, want: []int{12}},
		{name: "title any of", plan: `{"include": {"title": ["/Frontend/", "Data"]}}`, want: []int{5, 7}},
		{name: "invalid pattern falls back", plan: `{"include": {"title": "/[/i"}}`, want: []int{12, 5, 7}},
		{name: "location substring", plan: `{"include": {"location": "germany"}}`, want: []int{5}},
		{name: "years range", plan: `{"include": {"years_experience_min": 5, "years_experience_max": 10}}`, want: []int{5}},
		{name: "missing years never match", plan: `{"include": {"years_experience_min": 0}}`, want: []int{12, 5}},
		{name: "fractional min rounds up", plan: `{"include": {"years_experience_min": 8.5}}`, want: []int{12}},
		{name: "fractional max rounds down", plan: `{"include": {"years_experience_max": 8.5}}`, want: []int{5}},
		{name: "fractional string bound", plan: `{"include": {"years_experience_min": "18.2"}}`, want: []int{12}},
		{name: "no integer inside range", plan: `{"include": {"years_experience_min": 8.2, "years_experience_max": 8.8}}`, want: []int{}},
		{name: "salary max", plan: `{"include": {"desired_salary_max": 100000}}`, want: []int{5}},
		{name: "availability max", plan: `{"include": {"availability_weeks_max": 4}}`, want: []int{12}},
		{name: "relocate yes", plan: `{"include": {"willing_to_relocate": true}}`, want: []int{12, 7}},
		{name: "contract no", plan: `{"include": {"open_to_contract": false}}`, want: []int{12}},
		{name: "exclude skill", plan: `{"exclude": {"skills": ["Python"]}}`, want: []int{12, 5}},
		{name: "exclude any term", plan: `{"exclude": {"skills": ["Ruby", "Kubernetes"]}}`, want: []int{7}},
		{name: "exclude location", plan: `{"exclude": {"location": ["USA", "Cyprus"]}}`, want: []int{5}},
		{name: "exclude ignores ranges", plan: `{"exclude": {"years_experience_min": 1}}`, want: []int{12, 5, 7}},
		{name: "tags", plan: `{"include": {"tags": "cloud"}}`, want: []int{12}},
		{name: "languages", plan: `{"include": {"languages": ["english", "german"]}}`, want: []int{5}},
		{name: "no match sentinel", plan: `{"include": {"title": ["__NO_MATCH__"]}}`, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ApplyFilters(fixtures(), decode(t, tt.plan))
			assert.Equal(t, tt.want, candidates.IDs(res.Matched))
			assert.Equal(t, len(tt.want), res.MatchedCount)
			assert.Equal(t, 3, res.TotalCount)
		})
	}
}

func TestExclusionWinsOverInclusion(t *testing.T) {
	p := decode(t, `{"include": {"skills": ["React"]}, "exclude": {"skills": ["React"]}}`)
	res := ApplyFilters(fixtures(), p)
	assert.Empty(t, res.Matched)

	p = decode(t, `{"include": {"title": "/Engineer/"}, "exclude": {"title": "Frontend"}}`)
	res = ApplyFilters(fixtures(), p)
	assert.Equal(t, []int{12, 7}, candidates.IDs(res.Matched))
}

func TestMultiValueConjunctionAndDisjunction(t *testing.T) {
	c := candidates.Candidate{ID: 1, Skills: "React;Node.js"}

	cases := []struct {
		plan string
		keep bool
	}{
		{`{"include": {"skills": ["React", "Node.js"]}}`, true},
		{`{"include": {"skills": ["React", "Python"]}}`, false},
		{`{"exclude": {"skills": ["Python"]}}`, true},
		{`{"exclude": {"skills": ["React"]}}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.plan, func(t *testing.T) {
			assert.Equal(t, tc.keep, Keep(&c, decode(t, tc.plan)))
		})
	}
}

func TestRegexScenario(t *testing.T) {
	backend := candidates.Candidate{ID: 1, Title: "Senior Backend Engineer"}
	frontend := candidates.Candidate{ID: 2, Title: "Frontend Engineer"}

	p := &plan.FilterPlan{Include: plan.NewCriteria().Match("title", "/Backend/i")}
	assert.True(t, Keep(&backend, p))
	assert.False(t, Keep(&frontend, p))

	// "[" normalizes to an empty term, which every title contains
	broken := &plan.FilterPlan{Include: plan.NewCriteria().Match("title", "/[/i")}
	var res Result
	require.NotPanics(t, func() { res = ApplyFilters([]candidates.Candidate{backend, frontend}, broken) })
	assert.Equal(t, []int{1, 2}, candidates.IDs(res.Matched))
}

func TestLoadedEmptyNumbersReadAsZero(t *testing.T) {
	cands, _, err := candidates.Parse(strings.NewReader("id,full_name,years_experience\n1,A,\n2,B,3\n"))
	require.NoError(t, err)

	res := ApplyFilters(cands, decode(t, `{"include": {"years_experience_max": 5}}`))
	assert.Equal(t, []int{1, 2}, candidates.IDs(res.Matched))

	res = ApplyFilters(cands, decode(t, `{"include": {"years_experience_min": 1}}`))
	assert.Equal(t, []int{2}, candidates.IDs(res.Matched))
}

func TestMissingNumericDataNeverMatchesRange(t *testing.T) {
	c := candidates.Candidate{ID: 1}
	for _, key := range []string{
		`{"years_experience_min": 0}`,
		`{"years_experience_max": 100}`,
		`{"desired_salary_min": 0}`,
		`{"remote_experience_years_max": 50}`,
		`{"availability_weeks_max": 52}`,
		`{"notice_period_weeks_max": 52}`,
	} {
		t.Run(key, func(t *testing.T) {
			assert.False(t, Keep(&c, decode(t, `{"include": `+key+`}`)))
		})
	}
}

func TestApplyFiltersDoesNotMutateInput(t *testing.T) {
	cands := fixtures()
	before := fixtures()

	res := ApplyFilters(cands, decode(t, `{"include": {"skills": "React"}}`))
	require.Len(t, res.Matched, 2)
	res.Matched[0].FullName = "changed"

	assert.Equal(t, before, cands)
}
