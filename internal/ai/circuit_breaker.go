package ai

import (
	"context"
	stderrors "errors"

	"atslite/internal/config"
	"atslite/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// errEmit marks failures of the caller's emit callback. They say nothing about
// the model's health.
var errEmit = stderrors.New("stream consumer failed")

// breaker wraps a gobreaker circuit breaker. A nil breaker is disabled and
// passes calls straight through.
type breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// newGenerationBreaker guards think and speak generations with the configured
// trip policy. Caller cancellations and emit failures count as successes.
func newGenerationBreaker(operation string, cfg *config.OperationAIConfig, logger *errors.Logger) *breaker[*genai.GenerateContentResponse] {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	cbCfg := cfg.CircuitBreaker
	return newBreaker[*genai.GenerateContentResponse]("AI-"+operation, operation, cbCfg,
		tripAt(cbCfg.MinRequests, cbCfg.FailureThreshold),
		func(err error) bool {
			return err == nil ||
				stderrors.Is(err, context.Canceled) ||
				stderrors.Is(err, errEmit)
		}, logger)
}

// newModelBreaker guards model lookups. They only feed /health, so the policy
// is fixed and lenient.
func newModelBreaker(operation string, cfg *config.OperationAIConfig, logger *errors.Logger) *breaker[*genai.Model] {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	return newBreaker[*genai.Model]("AI-Model-"+operation, operation, cfg.CircuitBreaker,
		tripAt(5, 0.8), nil, logger)
}

func tripAt(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests || counts.Requests == 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

func newBreaker[T any](name, operation string, cfg config.CircuitBreakerConfig, trip func(gobreaker.Counts) bool, isSuccessful func(error) bool, logger *errors.Logger) *breaker[T] {
	settings := gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  trip,
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Info("Circuit breaker state changed",
					"name", name,
					"operation", operation,
					"from", from.String(),
					"to", to.String())
			}
		},
	}
	return &breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn unless the breaker is open.
func (b *breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Stats reports name, state and counts for /health and /stats.
func (b *breaker[T]) Stats() map[string]any {
	if b == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// Healthy reports whether the breaker is closed.
func (b *breaker[T]) Healthy() bool {
	return b == nil || b.cb.State() == gobreaker.StateClosed
}
