package plan

import (
	"maps"
	"slices"
)

// Preset ranking plans offered by the CLI and the rank endpoint.
var presets = map[string]*RankingPlan{
	"BY_EXPERIENCE_DESC": By("years_experience", Desc,
		Then("desired_salary_usd", Asc),
		Then("full_name", Asc)),
	"BY_EXPERIENCE_ASC": By("years_experience", Asc,
		Then("desired_salary_usd", Asc),
		Then("full_name", Asc)),
	"BY_SALARY_ASC": By("desired_salary_usd", Asc,
		Then("years_experience", Desc),
		Then("full_name", Asc)),
	"BY_SALARY_DESC": By("desired_salary_usd", Desc,
		Then("years_experience", Desc),
		Then("full_name", Asc)),
	"BY_NAME": By("full_name", Asc,
		Then("years_experience", Desc)),
	"BY_AVAILABILITY": By("availability_weeks", Asc,
		Then("notice_period_weeks", Asc),
		Then("years_experience", Desc)),
	"BY_LOCATION": By("location", Asc,
		Then("years_experience", Desc),
		Then("full_name", Asc)),
}

// Preset returns a copy of the named preset.
func Preset(name string) (*RankingPlan, bool) {
	p, ok := presets[name]
	if !ok {
		return nil, false
	}
	primary := *p.Primary
	return &RankingPlan{Primary: &primary, TieBreakers: slices.Clone(p.TieBreakers)}, true
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(presets))
}
