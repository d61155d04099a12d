package cli

import (
	"context"
	"time"

	"atslite/internal/ai"
	"atslite/internal/candidates"
	"atslite/internal/config"
	"atslite/internal/errors"
	"atslite/internal/observability"
)

// app bundles the long-lived collaborators a command needs.
type app struct {
	cfg     *config.Config
	logger  *errors.Logger
	om      *observability.Manager
	ai      *ai.Service
	store   *candidates.Store
	watcher *candidates.Watcher
}

// newApp builds telemetry, the AI service and the candidate store from cfg.
// withWatcher attaches a file watcher when the configuration enables one.
func newApp(cfg *config.Config, logger *errors.Logger, version string, withWatcher bool) (*app, error) {
	om, err := observability.NewManager(cfg.Observability, version)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to initialize observability", err)
	}
	metrics := om.Metrics()

	aiService, err := ai.NewService(cfg, logger)
	if err != nil {
		_ = om.Shutdown(context.Background())
		return nil, err
	}
	aiService.SetRecorder(metrics)

	store := candidates.NewStore(cfg.Data.CSVPath, cfg.Data.CacheTTL, logger)
	store.SetReloadHook(metrics.RecordReload)

	a := &app{
		cfg:    cfg,
		logger: logger,
		om:     om,
		ai:     aiService,
		store:  store,
	}
	if withWatcher && cfg.Data.Watch {
		a.watcher = candidates.WatchStore(cfg.Data.CSVPath, cfg.Data.Debounce, store, logger)
	}
	return a, nil
}

// Close releases the AI clients and flushes telemetry.
func (a *app) Close() {
	if err := a.ai.Close(); err != nil {
		a.logger.Warn("Failed to close AI service", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.om.Shutdown(ctx); err != nil {
		a.logger.Warn("Failed to shutdown observability", "error", err)
	}
}

// appFromCommand is the common prologue of commands that touch the dataset.
func appFromCommand(ctx context.Context, withWatcher bool) (*app, error) {
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logger, Version, withWatcher)
}
