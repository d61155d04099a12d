package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"atslite/internal/ai"
)

// Metrics holds the domain instruments. It satisfies the ai and workflow
// recorder interfaces and the candidate store reload hook.
type Metrics struct {
	aiDuration      metric.Float64Histogram
	aiRequests      metric.Int64Counter
	aiErrors        metric.Int64Counter
	aiTokens        metric.Int64Counter
	aiFallbacks     metric.Int64Counter
	workflowRuns    metric.Int64Counter
	workflowLatency metric.Float64Histogram
	matchRatio      metric.Float64Histogram
	rankDuration    metric.Float64Histogram
	reloads         metric.Int64Counter
	candidates      metric.Int64Gauge
	rateLimitHits   metric.Int64Counter
}

// NoopMetrics returns Metrics backed by a no-op meter
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(metricnoop.NewMeterProvider().Meter("atslite"))
	return m
}

// NewMetrics creates the domain instruments on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.aiDuration, err = meter.Float64Histogram(
		"atslite_ai_operation_duration_seconds",
		metric.WithDescription("Duration of AI operations in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.aiRequests, err = meter.Int64Counter(
		"atslite_ai_requests_total",
		metric.WithDescription("Total number of AI requests"),
	); err != nil {
		return nil, err
	}
	if m.aiErrors, err = meter.Int64Counter(
		"atslite_ai_errors_total",
		metric.WithDescription("Total number of failed AI requests"),
	); err != nil {
		return nil, err
	}
	if m.aiTokens, err = meter.Int64Counter(
		"atslite_ai_tokens_total",
		metric.WithDescription("Tokens consumed by AI requests"),
	); err != nil {
		return nil, err
	}
	if m.aiFallbacks, err = meter.Int64Counter(
		"atslite_ai_fallbacks_total",
		metric.WithDescription("Times a heuristic replaced the AI answer"),
	); err != nil {
		return nil, err
	}
	if m.workflowRuns, err = meter.Int64Counter(
		"atslite_workflow_runs_total",
		metric.WithDescription("Chat workflow runs by outcome"),
	); err != nil {
		return nil, err
	}
	if m.workflowLatency, err = meter.Float64Histogram(
		"atslite_workflow_duration_seconds",
		metric.WithDescription("End-to-end chat workflow duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.matchRatio, err = meter.Float64Histogram(
		"atslite_filter_match_ratio",
		metric.WithDescription("Share of candidates passing the filter plan"),
		metric.WithExplicitBucketBoundaries(0, 0.05, 0.1, 0.25, 0.5, 0.75, 1),
	); err != nil {
		return nil, err
	}
	if m.rankDuration, err = meter.Float64Histogram(
		"atslite_ranking_duration_seconds",
		metric.WithDescription("Time spent ranking filtered candidates"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.reloads, err = meter.Int64Counter(
		"atslite_dataset_reloads_total",
		metric.WithDescription("Candidate dataset load attempts"),
	); err != nil {
		return nil, err
	}
	if m.candidates, err = meter.Int64Gauge(
		"atslite_dataset_candidates",
		metric.WithDescription("Candidates in the loaded dataset"),
	); err != nil {
		return nil, err
	}
	if m.rateLimitHits, err = meter.Int64Counter(
		"atslite_rate_limit_hits_total",
		metric.WithDescription("Requests rejected by the rate limiter"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordAIOperation records one provider call
func (m *Metrics) RecordAIOperation(ctx context.Context, operation string, duration time.Duration, usage *ai.TokenUsage, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	)
	m.aiDuration.Record(ctx, duration.Seconds(), attrs)
	m.aiRequests.Add(ctx, 1, attrs)

	if err != nil {
		m.aiErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
		return
	}
	if usage == nil {
		return
	}
	if usage.InputTokens > 0 {
		m.aiTokens.Add(ctx, usage.InputTokens, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("type", "input"),
		))
	}
	if usage.OutputTokens > 0 {
		m.aiTokens.Add(ctx, usage.OutputTokens, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("type", "output"),
		))
	}
}

func (m *Metrics) RecordFallback(ctx context.Context, operation string) {
	m.aiFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (m *Metrics) RecordWorkflow(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.workflowRuns.Add(ctx, 1, attrs)
	m.workflowLatency.Record(ctx, duration.Seconds(), attrs)
}

// RecordFilter records the filter match ratio. Empty datasets are skipped.
func (m *Metrics) RecordFilter(ctx context.Context, matched, total int) {
	if total <= 0 {
		return
	}
	m.matchRatio.Record(ctx, float64(matched)/float64(total))
}

func (m *Metrics) RecordRanking(ctx context.Context, ranked int, duration time.Duration) {
	m.rankDuration.Record(ctx, duration.Seconds())
}

// RecordReload matches candidates.ReloadHook
func (m *Metrics) RecordReload(ctx context.Context, count int, duration time.Duration, err error) {
	m.reloads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err == nil {
		m.candidates.Record(ctx, int64(count))
	}
}

func (m *Metrics) RecordRateLimitHit(ctx context.Context, keyType string) {
	m.rateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key_type", keyType)))
}
