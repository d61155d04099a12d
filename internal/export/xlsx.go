// Package export writes ranked shortlists to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"atslite/internal/candidates"
	"atslite/internal/errors"
	"atslite/internal/stats"
)

const (
	ShortlistSheet = "Shortlist"
	SummarySheet   = "Summary"
)

var shortlistHeaders = []string{
	"Rank", "ID", "Name", "Title", "Location", "Years Experience", "Skills",
	"Desired Salary (USD)", "Availability (weeks)", "Work Preference", "Visa Status", "LinkedIn",
}

// Report is one exported shortlist.
type Report struct {
	Query       string
	Ranked      []candidates.Candidate
	Stats       stats.Stats
	GeneratedAt time.Time
}

// WriteXLSX writes r as a workbook with a Shortlist and a Summary sheet.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ShortlistSheet); err != nil {
		return exportError("rename sheet", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return exportError("create summary sheet", err)
	}

	if err := writeShortlist(f, r.Ranked); err != nil {
		return exportError("write shortlist", err)
	}
	if err := writeSummary(f, r); err != nil {
		return exportError("write summary", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return exportError("write workbook", err)
	}
	return nil
}

func exportError(step string, err error) error {
	return errors.NewIOError(errors.ErrCodeExportFailed, fmt.Sprintf("Failed to %s", step), err)
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

func writeShortlist(f *excelize.File, ranked []candidates.Candidate) error {
	style, err := headerStyle(f)
	if err != nil {
		return err
	}

	header := make([]any, len(shortlistHeaders))
	for i, h := range shortlistHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(ShortlistSheet, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(shortlistHeaders), 1)
	if err := f.SetCellStyle(ShortlistSheet, "A1", last, style); err != nil {
		return err
	}

	for i, c := range ranked {
		row := i + 2
		values := []any{
			i + 1,
			c.ID,
			c.FullName,
			c.Title,
			c.Location,
			optional(c.YearsExperience),
			c.Skills,
			optional(c.DesiredSalaryUSD),
			optional(c.AvailabilityWeeks),
			c.WorkPreference,
			c.VisaStatus,
			c.LinkedInURL,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ShortlistSheet, cell, &values); err != nil {
			return err
		}
		if c.LinkedInURL != "" {
			link, _ := excelize.CoordinatesToCellName(len(shortlistHeaders), row)
			if err := f.SetCellHyperLink(ShortlistSheet, link, c.LinkedInURL, "External"); err != nil {
				return err
			}
		}
	}

	widths := map[string]float64{"A": 6, "B": 6, "C": 24, "D": 28, "E": 24, "G": 40, "L": 36}
	for col, width := range widths {
		if err := f.SetColWidth(ShortlistSheet, col, col, width); err != nil {
			return err
		}
	}
	return f.SetPanes(ShortlistSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// optional leaves missing numeric cells blank.
func optional(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func writeSummary(f *excelize.File, r Report) error {
	style, err := headerStyle(f)
	if err != nil {
		return err
	}

	generated := r.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	skills := make([]string, 0, len(r.Stats.TopSkills))
	for _, s := range r.Stats.TopSkills {
		skills = append(skills, fmt.Sprintf("%s (%d)", s.Skill, s.Count))
	}

	rows := [][]any{
		{"Metric", "Value"},
		{"Query", r.Query},
		{"Generated", generated.UTC().Format(time.RFC3339)},
		{"Candidates", r.Stats.Count},
		{"Average Experience (years)", r.Stats.AvgExperience},
		{"Average Desired Salary (USD)", r.Stats.AvgSalary},
		{"Top Skills", strings.Join(skills, ", ")},
		{"Locations", strings.Join(r.Stats.Locations, "; ")},
		{"Languages", strings.Join(r.Stats.Languages, "; ")},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", style); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "A", 30)
}
