// Package root contains the root command for the application
package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"finot/ingest/internal/config"
	"finot/ingest/internal/logging"
)

var (
	// Cfg is the loaded configuration, available to all subcommands after
	// PersistentPreRunE.
	Cfg *config.Config

	// Log is the shared logger instance for commands
	Log logging.Logger

	// logLevel optionally overrides log.level from the command line.
	logLevel string

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "finot-ingest",
		Short: "An ingestion pipeline turning chat messages, receipts and voice notes into transactions.",
		Long: `finot-ingest normalizes text, image and audio inputs, classifies their
intent, extracts a structured transaction via an LLM, sanity-checks the
result and meters credit usage per user.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to finot-ingest!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()

			cfg, err := config.InitializeConfig()
			if err != nil {
				return fmt.Errorf("could not load configuration: %w", err)
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			Cfg = cfg
			Log = config.NewLogger(cfg)
			return nil
		},
	}
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
}
