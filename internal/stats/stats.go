// Package stats summarizes a ranked shortlist for the summary phase and the
// /api/speak route.
package stats

import (
	"math"
	"slices"
	"strings"

	"atslite/internal/candidates"
	"atslite/internal/matching"
)

// TopSkillLimit caps Stats.TopSkills.
const TopSkillLimit = 10

// SkillCount is the number of shortlisted candidates listing a skill.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// Stats aggregates a set of candidates.
type Stats struct {
	Count                   int            `json:"count"`
	AvgExperience           float64        `json:"avg_experience"`
	TopSkills               []SkillCount   `json:"top_skills"`
	AvgSalary               int            `json:"avg_salary"`
	Locations               []string       `json:"locations"`
	Languages               []string       `json:"languages"`
	Timezones               []string       `json:"timezones"`
	EducationBreakdown      map[string]int `json:"education_breakdown"`
	WorkPreferenceBreakdown map[string]int `json:"work_preference_breakdown"`
	VisaStatusBreakdown     map[string]int `json:"visa_status_breakdown"`
}

// Aggregate computes Stats over the candidates named by ids. Ids that do not
// resolve are skipped.
func Aggregate(ids []int, lookup candidates.Lookup) Stats {
	return Of(candidates.Resolve(ids, lookup))
}

// Of computes Stats over cands in the given order.
func Of(cands []candidates.Candidate) Stats {
	s := Stats{
		Count:                   len(cands),
		TopSkills:               []SkillCount{},
		Locations:               []string{},
		Languages:               []string{},
		Timezones:               []string{},
		EducationBreakdown:      map[string]int{},
		WorkPreferenceBreakdown: map[string]int{},
		VisaStatusBreakdown:     map[string]int{},
	}
	if len(cands) == 0 {
		return s
	}

	var expSum, salarySum float64
	salaries := 0
	skills := newCounter()
	locations := newUnique()
	languages := newUnique()
	timezones := newUnique()

	for _, c := range cands {
		expSum += float64(candidates.IntValue(c.YearsExperience))
		if sal := candidates.IntValue(c.DesiredSalaryUSD); sal > 0 {
			salarySum += float64(sal)
			salaries++
		}
		for _, skill := range splitList(c.Skills) {
			skills.add(skill)
		}
		locations.add(c.Location)
		for _, lang := range splitList(c.Languages) {
			languages.add(lang)
		}
		timezones.add(c.Timezone)
		tally(s.EducationBreakdown, c.EducationLevel)
		tally(s.WorkPreferenceBreakdown, c.WorkPreference)
		tally(s.VisaStatusBreakdown, c.VisaStatus)
	}

	s.AvgExperience = roundHalfUp(expSum/float64(len(cands))*10) / 10
	if salaries > 0 {
		s.AvgSalary = int(roundHalfUp(salarySum / float64(salaries)))
	}
	s.TopSkills = skills.top(TopSkillLimit)
	s.Locations = locations.values
	s.Languages = languages.values
	s.Timezones = timezones.values
	return s
}

// TopSkillNames returns up to n skill names from s.TopSkills.
func (s Stats) TopSkillNames(n int) []string {
	n = min(n, len(s.TopSkills))
	names := make([]string, 0, n)
	for _, sc := range s.TopSkills[:n] {
		names = append(names, sc.Skill)
	}
	return names
}

// TopLocations returns up to n locations in first-seen order.
func (s Stats) TopLocations(n int) []string {
	n = min(n, len(s.Locations))
	return append([]string{}, s.Locations[:n]...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, matching.Separator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func tally(m map[string]int, value string) {
	if value != "" {
		m[value]++
	}
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

type unique struct {
	seen   map[string]struct{}
	values []string
}

func newUnique() *unique {
	return &unique{seen: map[string]struct{}{}, values: []string{}}
}

func (u *unique) add(v string) {
	if v == "" {
		return
	}
	if _, ok := u.seen[v]; ok {
		return
	}
	u.seen[v] = struct{}{}
	u.values = append(u.values, v)
}

// counter keeps first-appearance order so equal counts rank stably.
type counter struct {
	index  map[string]int
	counts []SkillCount
}

func newCounter() *counter {
	return &counter{index: map[string]int{}}
}

func (c *counter) add(key string) {
	if i, ok := c.index[key]; ok {
		c.counts[i].Count++
		return
	}
	c.index[key] = len(c.counts)
	c.counts = append(c.counts, SkillCount{Skill: key, Count: 1})
}

func (c *counter) top(n int) []SkillCount {
	out := append([]SkillCount{}, c.counts...)
	slices.SortStableFunc(out, func(a, b SkillCount) int {
		return b.Count - a.Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
