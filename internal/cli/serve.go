package cli

import (
	"fmt"

	"atslite/internal/config"
	"atslite/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing the filter and rank pipeline.

Available endpoints:
- POST /api/chat: Stream the think, filter, rank and speak phases as NDJSON
- POST /api/think: Turn a query into filter and ranking plans
- POST /api/speak: Summarize a shortlist
- POST /api/rank: Apply explicit plans to the dataset
- GET /api/candidates: Describe the loaded dataset
- GET /api/test: Liveness probe
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

func init() {
	registerServeFlags(serveCmd.Flags())
}

func registerServeFlags(f *pflag.FlagSet) {
	f.StringP("port", "p", "", "Port to listen on (default from config)")
	f.String("host", "", "Host to bind to (default from config)")
	f.String("tls-mode", "", "TLS mode: disabled, server (overrides config)")
	f.String("cert-file", "", "Server certificate file (PEM, overrides config)")
	f.String("key-file", "", "Server private key file (PEM, overrides config)")
	f.String("csv", "", "Candidate CSV path (overrides config)")
	f.Bool("watch", false, "Reload the dataset when the CSV changes")
	f.Duration("phase-delay", 0, "Pause between streamed phases (overrides config)")
}

// applyServeOverrides copies explicitly set flags onto cfg and revalidates it.
func applyServeOverrides(cfg *config.Config, flags *pflag.FlagSet) error {
	overrides := map[string]*string{
		"port":      &cfg.Server.Port,
		"host":      &cfg.Server.Host,
		"tls-mode":  &cfg.Server.TLS.Mode,
		"cert-file": &cfg.Server.TLS.CertFile,
		"key-file":  &cfg.Server.TLS.KeyFile,
		"csv":       &cfg.Data.CSVPath,
	}
	for name, target := range overrides {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			if err != nil {
				return err
			}
			*target = v
		}
	}
	if flags.Changed("watch") {
		v, err := flags.GetBool("watch")
		if err != nil {
			return err
		}
		cfg.Data.Watch = v
	}
	if flags.Changed("phase-delay") {
		v, err := flags.GetDuration("phase-delay")
		if err != nil {
			return err
		}
		cfg.Server.PhaseDelay = v
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	if err := applyServeOverrides(cfg, cmd.Flags()); err != nil {
		return err
	}

	a, err := appFromCommand(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	// Warm the cache; a broken CSV is logged at startup.
	if ds, err := a.store.Get(ctx); err != nil {
		a.logger.LogError(err, "Candidate dataset not available yet")
	} else {
		a.logger.Info("Candidate dataset loaded", "candidates", len(ds.Candidates), "source", ds.Source)
	}

	srv := server.NewServer(cfg, Version, server.Dependencies{
		Data:          a.store,
		Planner:       a.ai.Planner,
		Summarizer:    a.ai.Speaker,
		AI:            a.ai,
		Observability: a.om,
		Watcher:       a.watcher,
	}, a.logger)
	return srv.Start(ctx)
}
