package plan

import (
	"regexp"
	"strings"
)

var (
	responseCleanup = []*regexp.Regexp{
		regexp.MustCompile("^```json\\s*"),
		regexp.MustCompile("\\s*```$"),
		regexp.MustCompile("^```\\s*"),
		regexp.MustCompile(`(?i)^Here's the JSON:?\s*`),
		regexp.MustCompile(`(?i)^The JSON response is:?\s*`),
	}
	jsonObject   = regexp.MustCompile(`\{[\s\S]*\}`)
	jsonAnyValue = regexp.MustCompile(`[\{\[][\s\S]*[\}\]]`)
)

// ExtractJSON pulls the JSON document out of a model response that may be
// wrapped in code fences or prefixed with prose.
func ExtractJSON(content string) string {
	cleaned := strings.TrimSpace(content)
	for _, re := range responseCleanup {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	if m := jsonObject.FindString(cleaned); m != "" {
		return m
	}
	if m := jsonAnyValue.FindString(cleaned); m != "" {
		return m
	}
	return cleaned
}
