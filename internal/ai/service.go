package ai

import (
	"context"
	"fmt"

	"atslite/internal/config"
	"atslite/internal/errors"
)

// Service wires the think and speak operations to their providers
type Service struct {
	Planner *Planner
	Speaker *Speaker

	think  Generator
	speak  Generator
	logger *errors.Logger
}

// NewService creates the AI service. An operation without an API key runs
// offline on the keyword planner or the templated summary.
func NewService(cfg *config.Config, logger *errors.Logger) (*Service, error) {
	thinkCfg := cfg.GetThinkConfig()
	speakCfg := cfg.GetSpeakConfig()

	think, err := newGenerator(&thinkCfg, "think", logger)
	if err != nil {
		return nil, err
	}
	speak, err := newGenerator(&speakCfg, "speak", logger)
	if err != nil {
		if think != nil {
			_ = think.Close()
		}
		return nil, err
	}

	return &Service{
		Planner: NewPlanner(think, thinkCfg.SystemPrompt, logger),
		Speaker: NewSpeaker(speak, speakCfg.SystemPrompt, logger),
		think:   think,
		speak:   speak,
		logger:  logger,
	}, nil
}

// newGenerator returns nil, nil when the operation has no API key.
func newGenerator(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		logger.Warn("No API key configured, running offline",
			"operation", operationType)
		return nil, nil
	}

	logger.Debug("Initializing AI provider",
		"provider", cfg.Provider,
		"operation_type", operationType,
		"model", cfg.Model,
		"temperature", derefFloat(cfg.Temperature),
		"max_output_tokens", cfg.MaxOutputTokens)

	switch cfg.Provider {
	case "gemini":
		provider, err := NewGeminiProvider(cfg, operationType, logger)
		if err != nil {
			return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed,
				"Failed to create AI provider", err)
		}
		return provider, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
}

// SetRecorder installs a telemetry sink on both operations.
func (s *Service) SetRecorder(r Recorder) {
	s.Planner.SetRecorder(r)
	s.Speaker.SetRecorder(r)
}

// GetModelInfo returns model availability per operation for health checks
func (s *Service) GetModelInfo(ctx context.Context) map[string]*ModelInfo {
	return map[string]*ModelInfo{
		"think": modelInfo(ctx, s.think),
		"speak": modelInfo(ctx, s.speak),
	}
}

func modelInfo(ctx context.Context, gen Generator) *ModelInfo {
	if gen == nil {
		return &ModelInfo{Name: "offline", Available: true}
	}
	return gen.GetModelInfo(ctx)
}

// CircuitBreakerStats returns breaker state for the online operations.
func (s *Service) CircuitBreakerStats() map[string]any {
	out := map[string]any{}
	for name, gen := range map[string]Generator{"think": s.think, "speak": s.speak} {
		if p, ok := gen.(*GeminiProvider); ok {
			out[name] = p.GetCircuitBreakerStats()
		}
	}
	return out
}

// Close releases provider resources.
func (s *Service) Close() error {
	for _, gen := range []Generator{s.think, s.speak} {
		if gen != nil {
			if err := gen.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}

func derefFloat(p *float32) float32 {
	if p == nil {
		return 0
	}
	return *p
}
