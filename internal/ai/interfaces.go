package ai

import (
	"context"
	"time"

	"atslite/internal/candidates"
	"atslite/internal/plan"
	"atslite/internal/stats"
)

// Generator is a text model. GeminiProvider is the production implementation;
// tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, *TokenUsage, error)
	// GenerateStream calls emit for every non-empty text delta, in order.
	GenerateStream(ctx context.Context, req GenerateRequest, emit func(string) error) (*TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// GenerateRequest is one model call.
type GenerateRequest struct {
	Operation       string
	System          string
	Prompt          string
	Temperature     *float32
	MaxOutputTokens int32
	JSON            bool
}

// PlanProvider turns a recruiter query into filter and ranking plans.
type PlanProvider interface {
	Think(ctx context.Context, query string, headers []string) (plan.Plans, error)
}

// Summarizer writes the recruiter-facing summary of a shortlist.
type Summarizer interface {
	Speak(ctx context.Context, req SpeakRequest) (string, error)
	SpeakStream(ctx context.Context, req SpeakRequest, emit func(string) error) error
}

// SpeakRequest carries the shortlist a summary is written for.
type SpeakRequest struct {
	Query         string
	TopCandidates []candidates.Candidate
	Stats         stats.Stats
}

// Recorder receives AI operation telemetry.
type Recorder interface {
	RecordAIOperation(ctx context.Context, operation string, duration time.Duration, usage *TokenUsage, err error)
	RecordFallback(ctx context.Context, operation string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAIOperation(context.Context, string, time.Duration, *TokenUsage, error) {}
func (noopRecorder) RecordFallback(context.Context, string)                                       {}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
