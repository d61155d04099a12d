package ai

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"atslite/internal/config"
	"atslite/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const modelCheckTimeout = 10 * time.Second

// GeminiProvider implements Generator for Google Gemini
type GeminiProvider struct {
	client         *genai.Client
	config         *config.OperationAIConfig
	operation      string
	circuitBreaker *breaker[*genai.GenerateContentResponse]
	modelBreaker   *breaker[*genai.Model]
	logger         *errors.Logger
	backoff        func(attempt int) time.Duration
}

var _ Generator = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini provider for one operation (think or speak)
func NewGeminiProvider(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (*GeminiProvider, error) {
	return newGeminiProvider(cfg, operationType, logger, genai.HTTPOptions{})
}

func newGeminiProvider(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger, httpOptions genai.HTTPOptions) (*GeminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:         client,
		config:         cfg,
		operation:      operationType,
		circuitBreaker: newGenerationBreaker(operationType, cfg, logger),
		modelBreaker:   newModelBreaker(operationType, cfg, logger),
		logger:         logger,
		backoff:        exponentialBackoff,
	}, nil
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"operation", g.operation,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	modelInfo.DisplayName = model.DisplayName
	modelInfo.Version = model.Version
	return modelInfo
}

// exponentialBackoff doubles from one second with up to 10% jitter, capped at 30s
func exponentialBackoff(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(0)
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(n.Int64())
		}
	}
	return min(baseDelay+jitter, 30*time.Second)
}

// executeWithRetry retries transport failures with exponential backoff
func (g *GeminiProvider) executeWithRetry(ctx context.Context, operation string, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	var lastErr error
	maxRetries := 0
	if g.config.MaxRetries != nil {
		maxRetries = *g.config.MaxRetries
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(g.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	g.logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"operation", operation,
		"max_retries", maxRetries)
	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, maxRetries, lastErr)
}

// isRetryableError reports network errors and 429/5xx API responses
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	code := 0
	var apiErr genai.APIError
	var gErr *googleapi.Error
	switch {
	case stderrors.As(err, &apiErr):
		code = apiErr.Code
	case stderrors.As(err, &gErr):
		code = gErr.Code
	}

	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// buildConfig maps a request onto the Gemini generation config
func (g *GeminiProvider) buildConfig(req GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = g.config.MaxOutputTokens
	}

	switch {
	case req.Temperature != nil:
		cfg.Temperature = req.Temperature
	case g.config.Temperature != nil && *g.config.Temperature > 0:
		cfg.Temperature = g.config.Temperature
	}

	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}

func (g *GeminiProvider) startSpan(ctx context.Context, req GenerateRequest, streaming bool) (context.Context, trace.Span) {
	tracer := otel.Tracer("atslite.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+req.Operation)
	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.String("ai.operation", req.Operation),
		attribute.Bool("ai.streaming", streaming),
		attribute.Int("input.prompt_length", len(req.Prompt)),
	)
	return ctx, span
}

func (g *GeminiProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.config.Timeout != nil && *g.config.Timeout > 0 {
		return context.WithTimeout(ctx, *g.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// Generate runs one non-streamed generation behind the breaker and retries
func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (string, *TokenUsage, error) {
	ctx, span := g.startSpan(ctx, req, false)
	defer span.End()

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	genCfg := g.buildConfig(req)
	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, req.Operation, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(req.Prompt), genCfg)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return "", nil, classifyError(ctx, "Failed to generate content for "+req.Operation, err)
	}

	usage := extractTokenUsage(result)
	recordUsage(span, usage)

	text := result.Text()
	if text == "" {
		span.SetAttributes(attribute.Bool("success", false))
		return "", usage, errors.NewAIError(errors.ErrCodeAIEmptyResponse,
			"Model returned an empty response for "+req.Operation, nil)
	}

	span.SetAttributes(attribute.Bool("success", true), attribute.Int("output.length", len(text)))
	return text, usage, nil
}

// GenerateStream streams one generation. Streams are not retried since
// partial output may already have reached the caller.
func (g *GeminiProvider) GenerateStream(ctx context.Context, req GenerateRequest, emit func(string) error) (*TokenUsage, error) {
	ctx, span := g.startSpan(ctx, req, true)
	defer span.End()

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	genCfg := g.buildConfig(req)
	chunks := 0
	last, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		var last *genai.GenerateContentResponse
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.config.Model, genai.Text(req.Prompt), genCfg) {
			if err != nil {
				return last, err
			}
			last = resp
			text := resp.Text()
			if text == "" {
				continue
			}
			chunks++
			if err := emit(text); err != nil {
				return last, fmt.Errorf("%w: %w", errEmit, err)
			}
		}
		return last, nil
	})

	usage := extractTokenUsage(last)
	recordUsage(span, usage)
	span.SetAttributes(attribute.Int("output.chunks", chunks))

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		if stderrors.Is(err, errEmit) {
			return usage, err
		}
		return usage, classifyError(ctx, "Failed to stream content for "+req.Operation, err)
	}
	if chunks == 0 {
		span.SetAttributes(attribute.Bool("success", false))
		return usage, errors.NewAIError(errors.ErrCodeAIEmptyResponse,
			"Model returned an empty stream for "+req.Operation, nil)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return usage, nil
}

func classifyError(ctx context.Context, message string, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewAIError(errors.ErrCodeAITimeout, message+": timeout", err)
	}
	return errors.NewAIError(errors.ErrCodeAIServiceFailed, message, err)
}

func recordUsage(span trace.Span, usage *TokenUsage) {
	if usage == nil {
		return
	}
	span.SetAttributes(
		attribute.Int64("ai.tokens.input", usage.InputTokens),
		attribute.Int64("ai.tokens.output", usage.OutputTokens),
		attribute.Int64("ai.tokens.total", usage.TotalTokens),
	)
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.Stats(),
		"model_operations": g.modelBreaker.Stats(),
		"overall_healthy":  g.circuitBreaker.Healthy() && g.modelBreaker.Healthy(),
	}
}

// Close implements Generator
func (g *GeminiProvider) Close() error {
	return nil
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
