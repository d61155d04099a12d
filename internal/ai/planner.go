package ai

import (
	"context"
	"strings"
	"time"

	"atslite/internal/errors"
	"atslite/internal/plan"
)

const (
	// DefaultThinkRetries is how many times a failed plan generation is retried
	// before falling back to keyword heuristics.
	DefaultThinkRetries = 2
	thinkMaxTokens      = 1000
)

var thinkTemperature float32 = 0.1

// retryableThinkKeywords mark failures worth another model call.
var retryableThinkKeywords = []string{"rate", "timeout", "network", "parse", "validation"}

// Planner implements PlanProvider. With no Generator every query goes
// straight to plan.Fallback.
type Planner struct {
	gen          Generator
	systemPrompt string
	logger       *errors.Logger
	recorder     Recorder
	maxRetries   int
	retryDelay   time.Duration
}

// NewPlanner creates a Planner. gen may be nil for offline use.
func NewPlanner(gen Generator, systemPrompt string, logger *errors.Logger) *Planner {
	return &Planner{
		gen:          gen,
		systemPrompt: systemPrompt,
		logger:       logger,
		recorder:     noopRecorder{},
		maxRetries:   DefaultThinkRetries,
		retryDelay:   time.Second,
	}
}

// SetRecorder installs a telemetry sink.
func (p *Planner) SetRecorder(r Recorder) {
	if r != nil {
		p.recorder = r
	}
}

// Online reports whether a model backs the planner.
func (p *Planner) Online() bool {
	return p.gen != nil
}

// Think validates the query and asks the model for plans. Model failures never
// surface: after the retries the keyword fallback plan is returned. Only query
// validation errors are returned.
func (p *Planner) Think(ctx context.Context, query string, headers []string) (plan.Plans, error) {
	sanitized, err := plan.ValidateQuery(query, headers)
	if err != nil {
		return plan.Plans{}, err
	}

	if p.gen == nil {
		return p.fallback(ctx, sanitized, nil), nil
	}

	req := GenerateRequest{
		Operation:       "think",
		System:          thinkSystemPrompt(p.systemPrompt, headers),
		Prompt:          sanitized,
		Temperature:     &thinkTemperature,
		MaxOutputTokens: thinkMaxTokens,
		JSON:            true,
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if !isRetryableThinkError(lastErr) {
				break
			}
			p.logger.Warn("Retrying plan generation",
				"attempt", attempt,
				"error", lastErr.Error())
			select {
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return p.fallback(ctx, sanitized, ctx.Err()), nil
			}
		}

		plans, err := p.generate(ctx, req)
		if err == nil {
			return plans, nil
		}
		lastErr = err
	}

	return p.fallback(ctx, sanitized, lastErr), nil
}

func (p *Planner) generate(ctx context.Context, req GenerateRequest) (plan.Plans, error) {
	start := time.Now()
	text, usage, err := p.gen.Generate(ctx, req)
	if err == nil {
		var plans plan.Plans
		plans, err = plan.Decode([]byte(plan.ExtractJSON(text)))
		if err == nil {
			p.recorder.RecordAIOperation(ctx, req.Operation, time.Since(start), usage, nil)
			p.logger.Debug("Plans generated",
				"primary", plans.Rank.Primary.String(),
				"duration", time.Since(start))
			return plans, nil
		}
		err = errors.NewAIError(errors.ErrCodeInvalidPlan, "Failed to parse response as valid JSON", err).
			WithContext("response_preview", preview(text, 200))
	}
	p.recorder.RecordAIOperation(ctx, req.Operation, time.Since(start), usage, err)
	return plan.Plans{}, err
}

func (p *Planner) fallback(ctx context.Context, query string, cause error) plan.Plans {
	plans := plan.Fallback(query)
	args := []any{"query", preview(query, 50), "rank", plans.Rank.String()}
	if cause != nil {
		p.logger.LogError(cause, "Using fallback plan after persistent errors", args...)
	} else {
		p.logger.Debug("Using fallback plan, no model configured", args...)
	}
	p.recorder.RecordFallback(ctx, "think")
	return plans
}

func isRetryableThinkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsCode(err, errors.ErrCodeInvalidPlan) || errors.IsCode(err, errors.ErrCodeAITimeout) || isRetryableError(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, keyword := range retryableThinkKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
