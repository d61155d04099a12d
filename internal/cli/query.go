package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"atslite/internal/ai"
	"atslite/internal/candidates"
	"atslite/internal/common"
	"atslite/internal/errors"
	"atslite/internal/formatters"
	"atslite/internal/ranking"
	"atslite/internal/stats"
	"atslite/internal/types"
	"atslite/internal/workflow"

	"github.com/spf13/cobra"
)

const defaultTopLimit = 10

var queryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Filter, rank and summarize candidates for a recruiter query",
	Long: `Run the think, filter, rank and speak pipeline against the candidate CSV.

The default ndjson format streams the same chunks as POST /api/chat. The json,
text and markdown formats print a single result once the pipeline finishes.`,
	Example: `  atslite query "senior react developers in Cyprus, most experienced first"
  atslite query --format markdown -o shortlist.md "go engineers under 90k"`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if queryConfig.OutputFormat == "" {
			queryConfig.OutputFormat = "ndjson"
		}
		if queryConfig.OutputFormat == "ndjson" {
			return nil
		}
		return common.ValidateRegisteredFormat(queryConfig.OutputFormat)
	},
	RunE: runQuery,
}

var (
	queryConfig common.CommandConfig
	queryLimit  int
)

func init() {
	queryCmd.Flags().StringVarP(&queryConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	queryCmd.Flags().StringVar(&queryConfig.OutputFormat, "format", "ndjson", "Output format: ndjson, json, text, or markdown")
	queryCmd.Flags().IntVar(&queryLimit, "limit", defaultTopLimit, "Number of ranked candidates to include in the result")

	_ = queryCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return append([]string{"ndjson"}, formatters.GlobalRegistry.GetSupportedFormats()...), cobra.ShellCompDirectiveNoFileComp
	})
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := appFromCommand(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")
	ds, err := a.store.Get(ctx)
	if err != nil {
		return err
	}

	if queryConfig.OutputFormat == "ndjson" {
		return streamQuery(ctx, a, query, ds, cmd.OutOrStdout())
	}

	result, err := buildQueryResult(ctx, a.ai.Planner, a.ai.Speaker, ds, query, queryLimit)
	if err != nil {
		return err
	}
	return common.NewOutputHandler(cmd.OutOrStdout(), a.logger).HandleOutput(result, queryConfig)
}

// streamQuery runs the workflow engine and writes its chunks as NDJSON.
func streamQuery(ctx context.Context, a *app, query string, ds *candidates.Dataset, stdout io.Writer) error {
	w := stdout
	if queryConfig.OutputFile != "" {
		fp := common.NewFileProcessor(a.logger)
		if err := fp.ValidateOutputFile(queryConfig.OutputFile); err != nil {
			return err
		}
		f, err := os.Create(queryConfig.OutputFile)
		if err != nil {
			return errors.NewIOError("FILE_WRITE_FAILED",
				fmt.Sprintf("Cannot write file: %s", queryConfig.OutputFile), err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	engine := workflow.New(a.ai.Planner, a.ai.Speaker, a.logger,
		workflow.WithRecorder(a.om.Metrics()))
	return engine.Run(ctx, query, ds, workflow.NDJSON(w, nil))
}

// buildQueryResult runs the pipeline without streaming. limit bounds the
// candidates copied into Top; the summary always sees the workflow's share.
func buildQueryResult(ctx context.Context, planner ai.PlanProvider, summarizer ai.Summarizer, ds *candidates.Dataset, query string, limit int) (types.QueryResult, error) {
	start := time.Now()
	if ds == nil || len(ds.Candidates) == 0 {
		return types.QueryResult{}, errors.NewIOError(errors.ErrCodeEmptyDataset, "No candidate data available", nil)
	}

	headers := ds.Headers
	if len(headers) == 0 {
		headers = candidates.FieldNames()
	}
	plans, err := planner.Think(ctx, query, headers)
	if err != nil {
		return types.QueryResult{}, err
	}

	combined := ranking.FilterAndRank(ds.Candidates, plans)
	result := types.QueryResult{
		Query:        query,
		Plans:        plans,
		TotalCount:   combined.TotalCount,
		MatchedCount: combined.MatchedCount,
		RankedIDs:    combined.RankedIDs,
	}
	if result.RankedIDs == nil {
		result.RankedIDs = []int{}
	}

	if combined.MatchedCount == 0 {
		result.Summary = ai.NoMatchSummary
		result.DurationMS = time.Since(start).Milliseconds()
		return result, nil
	}

	st := stats.Of(combined.Ranked)
	result.Stats = &st
	if limit <= 0 {
		limit = defaultTopLimit
	}
	result.Top = combined.Ranked[:min(limit, len(combined.Ranked))]

	summary, err := summarizer.Speak(ctx, ai.SpeakRequest{
		Query:         query,
		TopCandidates: combined.Ranked[:min(workflow.SummaryLimit, len(combined.Ranked))],
		Stats:         st,
	})
	if err != nil {
		return types.QueryResult{}, err
	}
	result.Summary = summary
	result.DurationMS = time.Since(start).Milliseconds()
	return result, nil
}
