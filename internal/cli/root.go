package cli

import (
	"context"
	"fmt"
	"io"

	"atslite/internal/config"
	"atslite/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "atslite",
	Short: "Filter and rank candidates from a CSV with natural-language queries",
	Long: `atslite is a lightweight applicant tracking engine. A recruiter query is
turned into a filter plan and a ranking plan, applied to a candidate CSV, and
summarized. The same pipeline is served over HTTP by "atslite serve".`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initCommand,
}

// initCommand loads configuration and builds the logger for every subcommand.
// Logs go to stderr so command output on stdout stays machine-readable.
func initCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.App.LogLevel)
	if err != nil {
		return err
	}

	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return fmt.Errorf("failed to load secrets from Vault: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	cmd.SetContext(ctx)
	return nil
}

func newLogger(w io.Writer, level string) (*errors.Logger, error) {
	slogLevel, err := errors.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return errors.NewWithWriter(w, slogLevel), nil
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return nil, errors.NewInternalError("CONFIG_MISSING", "configuration not initialized", nil)
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger, nil
	}
	return nil, errors.NewInternalError("LOGGER_MISSING", "logger not initialized", nil)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./config.yaml, $HOME/.atslite, /etc/atslite)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
