// Package workflow runs the think, filter, rank and speak phases for one
// recruiter query and reports each step as a stream of chunks.
package workflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"atslite/internal/ai"
	"atslite/internal/candidates"
	"atslite/internal/errors"
	"atslite/internal/filtering"
	"atslite/internal/ranking"
	"atslite/internal/stats"
)

const (
	// SummaryLimit is how many ranked candidates the summary sees.
	SummaryLimit = 10
	queryPreview = 50

	noMatchContent = "## No candidates found\n\n" + ai.NoMatchSummary
)

// Recorder receives pipeline telemetry.
type Recorder interface {
	RecordWorkflow(ctx context.Context, outcome string, duration time.Duration)
	RecordFilter(ctx context.Context, matched, total int)
	RecordRanking(ctx context.Context, ranked int, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordWorkflow(context.Context, string, time.Duration) {}
func (noopRecorder) RecordFilter(context.Context, int, int)                {}
func (noopRecorder) RecordRanking(context.Context, int, time.Duration)     {}

// Engine runs the pipeline. It is safe for concurrent use.
type Engine struct {
	planner    ai.PlanProvider
	summarizer ai.Summarizer
	logger     *errors.Logger
	recorder   Recorder
	phaseDelay time.Duration
	now        func() time.Time
	newID      func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithPhaseDelay pauses between phases so clients can render the timeline.
func WithPhaseDelay(d time.Duration) Option {
	return func(e *Engine) { e.phaseDelay = d }
}

// WithRecorder installs a telemetry sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// New creates an Engine.
func New(planner ai.PlanProvider, summarizer ai.Summarizer, logger *errors.Logger, opts ...Option) *Engine {
	e := &Engine{
		planner:    planner,
		summarizer: summarizer,
		logger:     logger,
		recorder:   noopRecorder{},
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// emitError marks a failure to deliver a chunk; the run cannot report it.
type emitError struct{ err error }

func (e *emitError) Error() string { return "emit chunk: " + e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

type session struct {
	id   string
	now  func() time.Time
	emit Emitter
}

func (s *session) send(c Chunk) error {
	c.Timestamp = s.now()
	c.SessionID = s.id
	if err := s.emit(c); err != nil {
		return &emitError{err: err}
	}
	return nil
}

func (s *session) phase(p Phase, title, description string, data any) error {
	return s.send(Chunk{Type: ChunkPhase, Phase: p, Title: title, Description: description, Data: data})
}

func (s *session) content(text string) error {
	return s.send(Chunk{Type: ChunkContent, Content: text})
}

func (s *session) fail(message, code string) error {
	return s.send(Chunk{Type: ChunkError, Error: message, Code: code})
}

// Run processes query against ds and streams the progress to emit. Failures
// of the pipeline are reported in-band as an error chunk; the returned error
// is non-nil only when emit itself failed or ctx ended.
func (e *Engine) Run(ctx context.Context, query string, ds *candidates.Dataset, emit Emitter) error {
	start := e.now()
	s := &session{id: e.newID(), now: e.now, emit: emit}
	logger := e.logger.With("session_id", s.id)

	if strings.TrimSpace(query) == "" {
		e.recorder.RecordWorkflow(ctx, "rejected", 0)
		return unwrapEmit(s.fail("Empty query provided", errors.ErrCodeInvalidQuery))
	}
	if ds == nil || len(ds.Candidates) == 0 {
		e.recorder.RecordWorkflow(ctx, "rejected", 0)
		return unwrapEmit(s.fail("No candidate data available", errors.ErrCodeEmptyDataset))
	}

	logger.Debug("Processing query",
		"query", truncate(query, queryPreview),
		"candidates", len(ds.Candidates))

	err := e.run(ctx, s, logger, query, ds, start)
	duration := e.now().Sub(start)

	var emitErr *emitError
	switch {
	case err == nil:
		e.recorder.RecordWorkflow(ctx, "success", duration)
		logger.Info("Workflow completed", "duration", duration)
		return nil
	case stderrors.As(err, &emitErr):
		e.recorder.RecordWorkflow(ctx, "disconnected", duration)
		logger.Warn("Stream consumer went away", "error", emitErr.err.Error())
		return emitErr.err
	}

	e.recorder.RecordWorkflow(ctx, "error", duration)
	logger.LogError(err, "Workflow failed")
	code := ""
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		code = appErr.Code
	}
	if sendErr := unwrapEmit(s.fail("Workflow failed: "+errors.UserMessage(err), code)); sendErr != nil {
		return sendErr
	}
	return ctx.Err()
}

func (e *Engine) run(ctx context.Context, s *session, logger *errors.Logger, query string, ds *candidates.Dataset, start time.Time) error {
	total := len(ds.Candidates)

	if err := s.phase(PhaseThink, "Analyzing Query",
		fmt.Sprintf("Processing \"%s\" against %d candidates", truncate(query, queryPreview), total), nil); err != nil {
		return err
	}

	headers := ds.Headers
	if len(headers) == 0 {
		headers = candidates.FieldNames()
	}
	plans, err := e.planner.Think(ctx, query, headers)
	if err != nil {
		return err
	}
	if plans.Filter == nil || plans.Rank.IsEmpty() || plans.Rank.Primary.Field == "" {
		return errors.NewInternalError(errors.ErrCodeInvalidPlan,
			"Invalid plans generated - missing required filter or ranking criteria", nil)
	}
	if unknown := plans.Filter.UnknownKeys(); len(unknown) > 0 {
		logger.Warn("Ignoring unknown filter keys", "keys", unknown)
	}

	if err := s.phase(PhaseThink, "Plans Generated", "Filter and ranking strategies created", map[string]any{
		"filterPlan":  plans.Filter,
		"rankingPlan": plans.Rank,
	}); err != nil {
		return err
	}

	if err := s.phase(PhaseFilter, "Filtering Candidates", "Applying search criteria...", nil); err != nil {
		return err
	}
	if err := e.pause(ctx); err != nil {
		return err
	}

	filtered := filtering.ApplyFilters(ds.Candidates, plans.Filter)
	count := filtered.MatchedCount
	e.recorder.RecordFilter(ctx, count, total)
	logger.Debug("Filter step", "initial", total, "dropped", total-count, "left", count)

	if err := s.phase(PhaseFilter, "Filtering Complete",
		fmt.Sprintf("Found %d matching candidates (%d%% match rate)", count, matchRate(count, total)),
		map[string]any{
			"count":      count,
			"filterPlan": plans.Filter,
			"total":      total,
		}); err != nil {
		return err
	}
	if err := e.pause(ctx); err != nil {
		return err
	}

	if count == 0 {
		if err := s.content(noMatchContent); err != nil {
			return err
		}
		return s.send(Chunk{Type: ChunkComplete, Data: CompleteData{
			TotalCandidates: total,
			FinalResults:    []int{},
			Duration:        e.now().Sub(start).Milliseconds(),
		}})
	}

	primary := plans.Rank.Primary
	if err := s.phase(PhaseRank, "Ranking Candidates",
		fmt.Sprintf("Sorting %d candidates by %s...", count, primary.Field), nil); err != nil {
		return err
	}
	if err := e.pause(ctx); err != nil {
		return err
	}

	rankStart := e.now()
	ranked := ranking.ApplyRanking(filtered.Matched, plans.Rank)
	e.recorder.RecordRanking(ctx, len(ranked.Ranked), e.now().Sub(rankStart))
	st := stats.Aggregate(ranked.RankedIDs, ds.Index)

	if err := s.phase(PhaseRank, "Ranking Complete",
		fmt.Sprintf("Ranked %d candidates by %s (%s)", len(ranked.Ranked), primary.Field, primary.Direction),
		map[string]any{
			"count":       len(ranked.Ranked),
			"rankedIds":   ranked.RankedIDs,
			"rankingPlan": plans.Rank,
			"stats": RankStats{
				AvgExperience: st.AvgExperience,
				TopSkills:     st.TopSkillNames(3),
				Locations:     st.TopLocations(3),
			},
		}); err != nil {
		return err
	}
	if err := e.pause(ctx); err != nil {
		return err
	}

	if err := s.phase(PhaseSpeak, "Generating Summary",
		fmt.Sprintf("Creating summary for top %d candidates...", min(5, len(ranked.Ranked))), nil); err != nil {
		return err
	}

	req := ai.SpeakRequest{
		Query:         query,
		TopCandidates: ranked.Ranked[:min(SummaryLimit, len(ranked.Ranked))],
		Stats:         st,
	}
	if err := e.summarizer.SpeakStream(ctx, req, s.content); err != nil {
		return err
	}

	return s.send(Chunk{Type: ChunkComplete, Data: CompleteData{
		TotalCandidates: total,
		FilteredCount:   count,
		FinalResults:    ranked.RankedIDs,
		Duration:        e.now().Sub(start).Milliseconds(),
	}})
}

func (e *Engine) pause(ctx context.Context) error {
	if e.phaseDelay <= 0 {
		return nil
	}
	t := time.NewTimer(e.phaseDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errors.NewInternalError(errors.ErrCodeWorkflowCanceled, "request canceled", ctx.Err())
	}
}

func unwrapEmit(err error) error {
	var emitErr *emitError
	if stderrors.As(err, &emitErr) {
		return emitErr.err
	}
	return err
}

func matchRate(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Floor(float64(count)/float64(total)*100 + 0.5))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
