// Package cmd implements the triad command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/triadhq/triad/internal/app"
	"github.com/triadhq/triad/internal/config"
	"github.com/triadhq/triad/internal/log"
)

var (
	flagLogLevel string
	flagLogJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "triad",
	Short: "Ask questions across your wiki, code repositories, and database",
	Long: `Triad answers questions by routing them across three knowledge sources:
wiki documentation, code repositories, and the relational database.
Results are merged into one answer with source attribution.

Run without arguments to start an interactive chat.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "log in JSON format")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelWarn
	switch flagLogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	logger := log.New(log.Config{Level: level, JSON: flagLogJSON})
	slog.SetDefault(logger)
	return logger
}

// initApp loads configuration and assembles the application. The
// caller owns Close.
func initApp(ctx context.Context) (*app.App, error) {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}
