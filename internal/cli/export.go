package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"atslite/internal/ai"
	"atslite/internal/candidates"
	"atslite/internal/common"
	"atslite/internal/errors"
	"atslite/internal/export"
	"atslite/internal/plan"
	"atslite/internal/ranking"
	"atslite/internal/stats"
	"atslite/internal/utils"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [text...]",
	Short: "Export a ranked shortlist to an Excel workbook",
	Long: `Export writes the ranked candidates for a query, or for an explicit plans
file, to an .xlsx workbook with a Shortlist sheet and a Summary sheet.`,
	Example: `  atslite export -o react.xlsx "react developers, cheapest first"
  atslite export -o all.xlsx --preset BY_EXPERIENCE_DESC
  atslite export -o shortlist.xlsx --plan plans.json --limit 25`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if exportFlags.output == "" {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest, "an output file is required (-o shortlist.xlsx)", nil)
		}
		if !utils.HasExtension(exportFlags.output, ".xlsx") {
			return errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("output file must have the .xlsx extension: %s", exportFlags.output), nil)
		}
		if len(args) == 0 && exportFlags.planFile == "" && exportFlags.preset == "" {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest, "provide a query, --plan or --preset", nil)
		}
		if exportFlags.preset != "" {
			if _, ok := plan.Preset(exportFlags.preset); !ok {
				return errors.NewValidationError(errors.ErrCodeInvalidPlan,
					fmt.Sprintf("unknown preset %q (available: %s)", exportFlags.preset, strings.Join(plan.PresetNames(), ", ")), nil)
			}
		}
		return nil
	},
	RunE: runExport,
}

var exportFlags struct {
	output   string
	planFile string
	preset   string
	limit    int
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "Workbook path (.xlsx)")
	exportCmd.Flags().StringVar(&exportFlags.planFile, "plan", "", "JSON file with {filter, rank} plans instead of a query (- for stdin)")
	exportCmd.Flags().StringVar(&exportFlags.preset, "preset", "", "Ranking preset overriding the planned ranking")
	exportCmd.Flags().IntVar(&exportFlags.limit, "limit", 0, "Maximum rows in the shortlist (0 exports every match)")

	_ = exportCmd.RegisterFlagCompletionFunc("preset", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return plan.PresetNames(), cobra.ShellCompDirectiveNoFileComp
	})
}

// exportRequest describes where the plans for an export come from.
type exportRequest struct {
	Query   string
	RawPlan []byte
	Preset  string
	Limit   int
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := appFromCommand(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	fp := common.NewFileProcessor(a.logger)
	req := exportRequest{
		Query:  strings.Join(args, " "),
		Preset: exportFlags.preset,
		Limit:  exportFlags.limit,
	}
	if exportFlags.planFile != "" {
		if req.RawPlan, err = fp.ReadFile(exportFlags.planFile); err != nil {
			return err
		}
	}

	ds, err := a.store.Get(ctx)
	if err != nil {
		return err
	}

	report, err := buildExportReport(ctx, a.ai.Planner, ds, req)
	if err != nil {
		return err
	}

	if err := fp.ValidateOutputFile(exportFlags.output); err != nil {
		return err
	}
	if err := fp.WriteWith(exportFlags.output, func(w io.Writer) error {
		return export.WriteXLSX(w, report)
	}); err != nil {
		return err
	}

	a.logger.Info("Shortlist exported",
		"file", exportFlags.output,
		"rows", len(report.Ranked),
		"matched", report.Stats.Count)
	return nil
}

// buildExportReport resolves the plans for req and ranks ds with them.
// Stats cover every match even when Limit trims the shortlist.
func buildExportReport(ctx context.Context, planner ai.PlanProvider, ds *candidates.Dataset, req exportRequest) (export.Report, error) {
	if ds == nil || len(ds.Candidates) == 0 {
		return export.Report{}, errors.NewIOError(errors.ErrCodeEmptyDataset, "No candidate data available", nil)
	}

	var plans plan.Plans
	switch {
	case req.RawPlan != nil:
		decoded, err := plan.Decode(req.RawPlan)
		if err != nil {
			return export.Report{}, errors.NewValidationError(errors.ErrCodeInvalidPlan, "Invalid plan file", err)
		}
		plans = decoded
	case strings.TrimSpace(req.Query) != "":
		headers := ds.Headers
		if len(headers) == 0 {
			headers = candidates.FieldNames()
		}
		thought, err := planner.Think(ctx, req.Query, headers)
		if err != nil {
			return export.Report{}, err
		}
		plans = thought
	}

	if req.Preset != "" {
		preset, ok := plan.Preset(req.Preset)
		if !ok {
			return export.Report{}, errors.NewValidationError(errors.ErrCodeInvalidPlan,
				fmt.Sprintf("unknown preset %q", req.Preset), nil)
		}
		plans.Rank = preset
	}

	combined := ranking.FilterAndRank(ds.Candidates, plans)
	ranked := combined.Ranked
	if req.Limit > 0 && len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	return export.Report{
		Query:       req.Query,
		Ranked:      ranked,
		Stats:       stats.Of(combined.Ranked),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
