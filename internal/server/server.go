package server

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"atslite/internal/ai"
	"atslite/internal/candidates"
	"atslite/internal/config"
	"atslite/internal/errors"
	"atslite/internal/observability"
	"atslite/internal/workflow"
)

// DatasetSource provides the current candidate dataset.
type DatasetSource interface {
	Get(ctx context.Context) (*candidates.Dataset, error)
}

// Dependencies are the collaborators the HTTP layer calls into. Only Data,
// Planner and Summarizer are required.
type Dependencies struct {
	Data          DatasetSource
	Planner       ai.PlanProvider
	Summarizer    ai.Summarizer
	AI            *ai.Service
	Observability *observability.Manager
	Watcher       *candidates.Watcher
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// API Authentication
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Logger *errors.Logger

	data       DatasetSource
	planner    ai.PlanProvider
	summarizer ai.Summarizer
	aiService  *ai.Service
	om         *observability.Manager
	metrics    *observability.Metrics
	watcher    *candidates.Watcher
	engine     *workflow.Engine
	validate   *validator.Validate
}

// NewServer creates a Server from the application configuration
func NewServer(appCfg *config.Config, version string, deps Dependencies, logger *errors.Logger) *Server {
	cfg := appCfg.Server

	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	om := deps.Observability
	if om == nil {
		om, _ = observability.NewManager(config.ObservabilityConfig{}, version)
	}
	metrics := om.Metrics()

	var rateLimiter *RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	rateLimit := cfg.RateLimit
	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        version,
		AppConfig:      appCfg,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      &rateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		data:           deps.Data,
		planner:        deps.Planner,
		summarizer:     deps.Summarizer,
		aiService:      deps.AI,
		om:             om,
		metrics:        metrics,
		watcher:        deps.Watcher,
		engine: workflow.New(deps.Planner, deps.Summarizer, logger,
			workflow.WithPhaseDelay(cfg.PhaseDelay),
			workflow.WithRecorder(metrics),
		),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}
