package candidates

// Candidate is one row of the candidate CSV. Numeric columns are pointers so a
// missing cell stays distinguishable from an explicit zero.
type Candidate struct {
	ID                    int    `json:"id"`
	FullName              string `json:"full_name"`
	Title                 string `json:"title"`
	Location              string `json:"location"`
	Timezone              string `json:"timezone"`
	YearsExperience       *int   `json:"years_experience"`
	Skills                string `json:"skills"`
	Languages             string `json:"languages"`
	EducationLevel        string `json:"education_level"`
	DegreeMajor           string `json:"degree_major"`
	AvailabilityWeeks     *int   `json:"availability_weeks"`
	WillingToRelocate     string `json:"willing_to_relocate"`
	WorkPreference        string `json:"work_preference"`
	NoticePeriodWeeks     *int   `json:"notice_period_weeks"`
	DesiredSalaryUSD      *int   `json:"desired_salary_usd"`
	OpenToContract        string `json:"open_to_contract"`
	RemoteExperienceYears *int   `json:"remote_experience_years"`
	VisaStatus            string `json:"visa_status"`
	Citizenships          string `json:"citizenships"`
	Summary               string `json:"summary"`
	Tags                  string `json:"tags"`
	LastActive            string `json:"last_active"`
	LinkedInURL           string `json:"linkedin_url"`
}

// Int returns a pointer to n, for building candidates with numeric values.
func Int(n int) *int {
	return &n
}

// IntValue dereferences p, treating a missing value as zero.
func IntValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// Lookup resolves candidate ids to records.
type Lookup interface {
	ByID(id int) (Candidate, bool)
}

// Index is an id keyed Lookup built once per dataset.
type Index map[int]Candidate

// NewIndex builds an Index from cands. Later duplicates overwrite earlier ones;
// the CSV loader rejects duplicates before this point.
func NewIndex(cands []Candidate) Index {
	idx := make(Index, len(cands))
	for _, c := range cands {
		idx[c.ID] = c
	}
	return idx
}

// ByID implements Lookup.
func (idx Index) ByID(id int) (Candidate, bool) {
	c, ok := idx[id]
	return c, ok
}

// Resolve maps ids to records in order, dropping ids the lookup does not know.
func Resolve(ids []int, lookup Lookup) []Candidate {
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := lookup.ByID(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// IDs returns the ids of cands in order.
func IDs(cands []Candidate) []int {
	ids := make([]int, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}
	return ids
}
