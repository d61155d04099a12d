package ai

import (
	"fmt"
	"strconv"
	"strings"

	"atslite/internal/candidates"
	"atslite/internal/stats"
)

// fieldsPlaceholder is replaced with the dataset's CSV headers.
const fieldsPlaceholder = "{{fields}}"

// SystemPrompts holds the system instructions per operation
type SystemPrompts struct {
	Think string
	Speak string
	Brief string
}

// DefaultSystemPrompts provides the built-in system instructions
var DefaultSystemPrompts = SystemPrompts{
	Think: `You are an ATS assistant specialized in candidate filtering and ranking.

CRITICAL: Respond with ONLY valid JSON. No explanations, no markdown, no extra text.

Required JSON Structure:
{
  "filter": {
    "include": { "field": "value" },
    "exclude": { "field": "value" }
  },
  "rank": {
    "primary": { "field": "field_name", "direction": "desc" },
    "tie_breakers": [{ "field": "field_name", "direction": "desc" }]
  }
}

Available CSV Fields: {{fields}}

FILTER FIELD SPECIFICATIONS:
- title: Use regex patterns like "/Backend/i" or arrays like ["/Frontend/", "/UI/"]
- location: Exact matches ("USA", "Germany", "Berlin, Germany", "San Francisco, USA")
- skills: Skill names ("React", "Python", "JavaScript", "Node.js"); an array requires every skill
- years_experience_min/max: Numeric ranges (e.g., years_experience_min: 3)
- desired_salary_min/max: Salary ranges in USD (e.g., desired_salary_min: 80000)
- work_preference: Exact values ("Remote", "Hybrid", "Onsite", "Any")
- willing_to_relocate/open_to_contract: Boolean values (true/false)

PATTERN MATCHING RULES:
- For job types: "frontend" → "/Frontend/i", "backend" → "/Backend/i", "fullstack" → "/Full.?Stack/i"
- For cloud roles: "cloud specialist", "cloud experience", "cloud engineer", "cloud expert" → "/Cloud.*Architect/i"
- For seniority: "senior" → "/Senior/i", "junior" → "/Junior/i", "lead" → "/Lead/i"
- For location normalization: "US/USA/America" → "USA", "UK/Britain" → "United Kingdom"
- Case-insensitive matching with "/pattern/i" when appropriate

RANKING FIELD OPTIONS:
- years_experience: "desc" for most experienced, "asc" for least experienced
- desired_salary_usd: "desc" for highest salary, "asc" for lowest salary
- availability_weeks: "asc" for earliest availability, "desc" for latest availability

QUERY INTERPRETATION LOGIC:
1. Extract specific requirements over general ones
2. Default to "desc" sorting for experience/salary unless specified otherwise
3. For ambiguous queries, prioritize commonly requested filters
4. If query lacks clear criteria, use restrictive filter: {"title": ["__NO_MATCH__"]}
5. Always provide both filter and rank objects

EXAMPLES:
- "React developers in USA" → include: {"skills": "React", "location": "USA"}
- "Senior backend engineers, most experienced" → include: {"title": "/Senior.*Backend/i"}, rank: {"primary": {"field": "years_experience", "direction": "desc"}}
- "Remote workers under $100k" → include: {"work_preference": "Remote", "desired_salary_usd_max": 100000}
- "cloud specialist" → include: {"title": "/Cloud.*Architect/i"}
- "AWS expert" → include: {"skills": "AWS", "tags": "cloud"}
- "cloud architect with GCP" → include: {"title": "/Cloud.*Architect/i", "skills": "GCP"}
- "DevOps with cloud experience" → include: {"title": "/DevOps/i", "tags": "cloud"}`,

	Speak: `You are ATS-Lite, a helpful recruitment assistant.
Generate a well-formatted, professional summary of candidate search results.

CRITICAL: Format your response as clean, readable markdown that will display properly in a chat interface.

Required structure:
## 🎯 Found {count} candidates matching your criteria

**📊 Quick Stats:**
- Average experience: {avg} years
- Top skills: {skill1}, {skill2}, {skill3}
- Locations: {locations}

**👥 Top Candidates:**

1. **{Name}** ({Title})
   📍 {Location} • ⏱️ {Years} years • 💰 {Salary}

[Continue for top 5 candidates]

**💡 Key Insights:**
[Brief analysis of the candidate pool]

Keep it professional, concise, and visually appealing with proper markdown formatting.`,

	Brief: "You are ATS-Lite, a helpful ATS assistant. Provide concise, professional summaries for recruiters.",
}

// thinkSystemPrompt renders the plan prompt for the dataset's headers. A
// custom prompt may use the same placeholder.
func thinkSystemPrompt(custom string, headers []string) string {
	prompt := DefaultSystemPrompts.Think
	if custom != "" {
		prompt = custom
	}
	return strings.ReplaceAll(prompt, fieldsPlaceholder, strings.Join(headers, ", "))
}

// speakContextPrompt is the user message for the streamed markdown summary
func speakContextPrompt(req SpeakRequest) string {
	top := req.TopCandidates[:min(5, len(req.TopCandidates))]

	var b strings.Builder
	fmt.Fprintf(&b, "USER QUERY: %q\n\n", req.Query)
	b.WriteString("SEARCH RESULTS:\n")
	fmt.Fprintf(&b, "- Total candidates found: %d\n", req.Stats.Count)
	fmt.Fprintf(&b, "- Average experience: %s years\n", formatYears(req.Stats.AvgExperience))
	fmt.Fprintf(&b, "- Top skills: %s\n", formatSkills(req.Stats.TopSkills, 5))
	fmt.Fprintf(&b, "- Locations: %s\n\n", strings.Join(uniqueLocations(req.TopCandidates, 5), ", "))
	b.WriteString("TOP 5 CANDIDATES:\n")
	for i, c := range top {
		fmt.Fprintf(&b, "%d. %s (%s) - %s - %s years - %s\n",
			i+1, c.FullName, c.Title, c.Location, formatInt(c.YearsExperience), formatInt(c.DesiredSalaryUSD))
	}
	b.WriteString("\nPlease generate a professional summary following the required markdown structure.")
	return b.String()
}

// briefPrompt is the user message for the short, non-streamed summary
func briefPrompt(req SpeakRequest) string {
	if req.Stats.Count == 0 {
		return fmt.Sprintf("A recruiter searched for: %q\n\n"+
			"No candidates were found. Generate a helpful, professional response suggesting alternative search terms or broader criteria.",
			req.Query)
	}

	top := req.TopCandidates[:min(5, len(req.TopCandidates))]
	lines := make([]string, 0, len(top))
	for _, c := range top {
		lines = append(lines, fmt.Sprintf("%s - %s (%s yrs, %s)",
			c.FullName, c.Title, formatInt(c.YearsExperience), c.Location))
	}
	avg := formatYears(req.Stats.AvgExperience)

	return fmt.Sprintf(`A recruiter searched for: %q

Found %d candidates (avg %s yrs experience).

Top 5 candidates:
%s

Statistics:
- Total matches: %d
- Average experience: %s years
- Top skills: %s

Generate a concise, professional summary for the recruiter highlighting the key findings and top candidates.`,
		req.Query, req.Stats.Count, avg, strings.Join(lines, "\n"),
		req.Stats.Count, avg, formatSkills(req.Stats.TopSkills, len(req.Stats.TopSkills)))
}

func formatYears(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt(p *int) string {
	if p == nil {
		return "n/a"
	}
	return strconv.Itoa(*p)
}

func formatSkills(skills []stats.SkillCount, n int) string {
	n = min(n, len(skills))
	parts := make([]string, 0, n)
	for _, s := range skills[:n] {
		parts = append(parts, fmt.Sprintf("%s (%d)", s.Skill, s.Count))
	}
	return strings.Join(parts, ", ")
}

func uniqueLocations(cands []candidates.Candidate, n int) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range cands {
		if c.Location == "" || seen[c.Location] {
			continue
		}
		seen[c.Location] = true
		out = append(out, c.Location)
		if len(out) == n {
			break
		}
	}
	return out
}
