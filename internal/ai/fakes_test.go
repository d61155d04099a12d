package ai

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"atslite/internal/errors"
)

var testHeaders = []string{"id", "full_name", "title", "location", "years_experience", "skills", "desired_salary_usd"}

func newTestLogger() *errors.Logger {
	return errors.NewWithWriter(io.Discard, slog.LevelDebug)
}

type fakeResult struct {
	text string
	err  error
}

// fakeGenerator replays scripted results; the last one repeats.
type fakeGenerator struct {
	mu       sync.Mutex
	results  []fakeResult
	chunks   []string
	failAt   int
	failErr  error
	requests []GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerateRequest) (string, *TokenUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	r := f.results[min(len(f.requests), len(f.results))-1]
	return r.text, &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, r.err
}

// GenerateStream emits chunks, failing with failErr before chunk failAt when set.
func (f *fakeGenerator) GenerateStream(_ context.Context, req GenerateRequest, emit func(string) error) (*TokenUsage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	for i, c := range f.chunks {
		if f.failErr != nil && i == f.failAt {
			return nil, f.failErr
		}
		if err := emit(c); err != nil {
			return nil, err
		}
	}
	if f.failErr != nil && f.failAt >= len(f.chunks) {
		return nil, f.failErr
	}
	return nil, nil
}

func (f *fakeGenerator) GetModelInfo(context.Context) *ModelInfo {
	return &ModelInfo{Name: "fake", Available: true}
}

func (f *fakeGenerator) Close() error { return nil }

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type recordedOp struct {
	operation string
	failed    bool
}

type fakeRecorder struct {
	mu        sync.Mutex
	ops       []recordedOp
	fallbacks []string
}

func (r *fakeRecorder) RecordAIOperation(_ context.Context, op string, _ time.Duration, _ *TokenUsage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{operation: op, failed: err != nil})
}

func (r *fakeRecorder) RecordFallback(_ context.Context, op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, op)
}
