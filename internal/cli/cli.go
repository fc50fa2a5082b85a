package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pmholt/eventscout/internal/config"
	"github.com/pmholt/eventscout/internal/logger"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitRunFailed = 2
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventscout",
		Short: "Scrape, enrich, and serve local event listings",
		Long: `eventscout scrapes event listings, enriches them with type
classification, geocoding, and rewritten copy, and persists them to
Postgres. The serve subcommand exposes the stored collections over a
REST API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: json or console")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// loadConfig reads the config file and applies the logging flag overrides.
func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.Log.Format = flagLogFormat
	}
	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, log, nil
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
