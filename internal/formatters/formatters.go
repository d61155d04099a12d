package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"atslite/internal/candidates"
	"atslite/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "QueryResult", &QueryTextFormatter{})
	registry.RegisterFormatter("markdown", "QueryResult", &QueryMarkdownFormatter{})
	registry.RegisterFormatter("text", "ValidationReport", &ValidationTextFormatter{})
	registry.RegisterFormatter("markdown", "ValidationReport", &ValidationTextFormatter{markdown: true})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

// GlobalRegistry is the registry used by the CLI
var GlobalRegistry = NewFormatterRegistry()

func getDataType(data any) string {
	switch data.(type) {
	case types.QueryResult, *types.QueryResult:
		return "QueryResult"
	case types.ValidationReport, *types.ValidationReport:
		return "ValidationReport"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

func asQueryResult(data any) (types.QueryResult, error) {
	switch v := data.(type) {
	case types.QueryResult:
		return v, nil
	case *types.QueryResult:
		return *v, nil
	}
	return types.QueryResult{}, fmt.Errorf("expected QueryResult, got %T", data)
}

func asValidationReport(data any) (types.ValidationReport, error) {
	switch v := data.(type) {
	case types.ValidationReport:
		return v, nil
	case *types.ValidationReport:
		return *v, nil
	}
	return types.ValidationReport{}, fmt.Errorf("expected ValidationReport, got %T", data)
}

// QueryTextFormatter renders a query result for terminals
type QueryTextFormatter struct{}

func (qtf *QueryTextFormatter) Format(data any) (string, error) {
	result, err := asQueryResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	fmt.Fprintf(&output, "=== QUERY ===\n%s\n\n", result.Query)
	fmt.Fprintf(&output, "Matched %d of %d candidates", result.MatchedCount, result.TotalCount)
	if result.Plans.Rank != nil {
		fmt.Fprintf(&output, ", ranked by %s", result.Plans.Rank.String())
	}
	output.WriteString("\n\n")

	if len(result.Top) > 0 {
		output.WriteString("=== TOP CANDIDATES ===\n")
		for i, c := range result.Top {
			fmt.Fprintf(&output, "%2d. %s (#%d)\n    %s\n", i+1, c.FullName, c.ID, candidateLine(c))
		}
		output.WriteString("\n")
	}

	if result.Stats != nil && result.Stats.Count > 0 {
		output.WriteString("=== STATISTICS ===\n")
		fmt.Fprintf(&output, "Average experience: %.1f years\n", result.Stats.AvgExperience)
		if result.Stats.AvgSalary > 0 {
			fmt.Fprintf(&output, "Average desired salary: $%d\n", result.Stats.AvgSalary)
		}
		if skills := result.Stats.TopSkillNames(5); len(skills) > 0 {
			fmt.Fprintf(&output, "Top skills: %s\n", strings.Join(skills, ", "))
		}
		output.WriteString("\n")
	}

	if result.Summary != "" {
		output.WriteString("=== SUMMARY ===\n")
		output.WriteString(strings.TrimSpace(result.Summary))
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (qtf *QueryTextFormatter) SupportedType() string {
	return "QueryResult"
}

// QueryMarkdownFormatter renders a query result as a markdown report
type QueryMarkdownFormatter struct{}

func (qmf *QueryMarkdownFormatter) Format(data any) (string, error) {
	result, err := asQueryResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	fmt.Fprintf(&output, "# Shortlist: %s\n\n", result.Query)
	fmt.Fprintf(&output, "**Matched:** %d of %d candidates\n\n", result.MatchedCount, result.TotalCount)

	if len(result.Top) > 0 {
		output.WriteString("| # | Name | Title | Location | Years | Skills |\n")
		output.WriteString("|---|------|-------|----------|-------|--------|\n")
		for i, c := range result.Top {
			fmt.Fprintf(&output, "| %d | %s | %s | %s | %s | %s |\n",
				i+1, escapeCell(c.FullName), escapeCell(c.Title), escapeCell(c.Location),
				years(c.YearsExperience), escapeCell(strings.ReplaceAll(c.Skills, ";", ", ")))
		}
		output.WriteString("\n")
	}

	if result.Summary != "" {
		output.WriteString("## Summary\n\n")
		output.WriteString(strings.TrimSpace(result.Summary))
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (qmf *QueryMarkdownFormatter) SupportedType() string {
	return "QueryResult"
}

// ValidationTextFormatter renders a validation report as text or markdown
type ValidationTextFormatter struct {
	markdown bool
}

func (vtf *ValidationTextFormatter) Format(data any) (string, error) {
	report, err := asValidationReport(data)
	if err != nil {
		return "", err
	}

	status := "VALID"
	if !report.Valid {
		status = "INVALID"
	}

	var output strings.Builder
	if vtf.markdown {
		fmt.Fprintf(&output, "## %s `%s`: %s\n\n", report.Kind, report.Source, status)
	} else {
		fmt.Fprintf(&output, "%s %s: %s\n", report.Kind, report.Source, status)
	}

	if report.Records > 0 {
		fmt.Fprintf(&output, "Records: %d\n", report.Records)
	}
	if report.Size != "" {
		fmt.Fprintf(&output, "Size: %s\n", report.Size)
	}
	if len(report.Headers) > 0 {
		fmt.Fprintf(&output, "Columns: %s\n", strings.Join(report.Headers, ", "))
	}

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		if vtf.markdown {
			fmt.Fprintf(&output, "\n### %s\n\n", title)
		} else {
			fmt.Fprintf(&output, "\n%s:\n", title)
		}
		for _, item := range items {
			fmt.Fprintf(&output, "- %s\n", item)
		}
	}
	writeList("Problems", report.Problems)
	writeList("Warnings", report.Warnings)

	return output.String(), nil
}

func (vtf *ValidationTextFormatter) SupportedType() string {
	return "ValidationReport"
}

func candidateLine(c candidates.Candidate) string {
	parts := []string{c.Title}
	if c.Location != "" {
		parts = append(parts, c.Location)
	}
	parts = append(parts, years(c.YearsExperience)+" yrs")
	if c.DesiredSalaryUSD != nil {
		parts = append(parts, fmt.Sprintf("$%d", *c.DesiredSalaryUSD))
	}
	return strings.Join(parts, " | ")
}

func years(p *int) string {
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *p)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
