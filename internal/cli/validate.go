package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"atslite/internal/candidates"
	"atslite/internal/common"
	"atslite/internal/errors"
	"atslite/internal/plan"
	"atslite/internal/types"
	"atslite/internal/utils"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a candidate CSV or a plans document",
}

var validateCSVCmd = &cobra.Command{
	Use:   "csv [path]",
	Short: "Check that a candidate CSV loads (default: the configured data.csvPath)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		path := cfg.Data.CSVPath
		if len(args) == 1 {
			path = args[0]
		}
		return emitReport(cmd, validateCSV(path))
	},
}

var validatePlanCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Check a {filter, rank} plans document (- reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := getLoggerFromContext(cmd.Context())
		if err != nil {
			return err
		}
		raw, err := common.NewFileProcessor(logger).ReadFile(args[0])
		if err != nil {
			return err
		}
		return emitReport(cmd, validatePlan(args[0], raw))
	},
}

var validateConfig common.CommandConfig

func init() {
	validateCmd.PersistentFlags().StringVarP(&validateConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	validateCmd.PersistentFlags().StringVar(&validateConfig.OutputFormat, "format", "text", "Output format: json, text, or markdown")
	validateCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initCommand(cmd, args); err != nil {
			return err
		}
		return common.ValidateRegisteredFormat(validateConfig.OutputFormat)
	}

	validateCmd.AddCommand(validateCSVCmd)
	validateCmd.AddCommand(validatePlanCmd)
}

// emitReport prints report and fails the command when it is not valid.
func emitReport(cmd *cobra.Command, report types.ValidationReport) error {
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}
	if err := common.NewOutputHandler(cmd.OutOrStdout(), logger).HandleOutput(report, validateConfig); err != nil {
		return err
	}
	if !report.Valid {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s %s has %d problem(s)", report.Kind, report.Source, len(report.Problems)), nil)
	}
	return nil
}

// validateCSV loads path the way the server does and reports what it found.
func validateCSV(path string) types.ValidationReport {
	report := types.ValidationReport{Source: path, Kind: "csv"}

	if info, err := os.Stat(path); err == nil {
		report.Size = utils.FormatFileSize(info.Size())
	}
	if !utils.HasExtension(path, ".csv") {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("unexpected file extension %q", utils.GetFileExtension(path)))
	}

	cands, headers, err := candidates.LoadFile(path)
	if err != nil {
		report.Problems = append(report.Problems, errors.UserMessage(err))
		return report
	}

	report.Valid = true
	report.Records = len(cands)
	report.Headers = headers
	for _, h := range headers {
		if _, ok := candidates.LookupField(h); !ok {
			report.Warnings = append(report.Warnings, fmt.Sprintf("column %q is not a known field and is ignored", h))
		}
	}
	if len(cands) == 0 {
		report.Warnings = append(report.Warnings, "no candidate rows")
	}
	return report
}

// validatePlan checks raw against the plans schema and field registry.
func validatePlan(source string, raw []byte) types.ValidationReport {
	report := types.ValidationReport{
		Source: source,
		Kind:   "plan",
		Size:   utils.FormatFileSize(int64(len(raw))),
	}

	plans, err := plan.Decode(raw)
	if err != nil {
		var verr *plan.ValidationError
		if stderrors.As(err, &verr) {
			report.Problems = verr.Problems
		} else {
			report.Problems = []string{err.Error()}
		}
		return report
	}

	report.Valid = true
	for _, key := range plans.Filter.UnknownKeys() {
		report.Warnings = append(report.Warnings, fmt.Sprintf("filter key %s is not recognized and is ignored", key))
	}
	return report
}
