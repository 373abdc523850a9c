// Package main is the entry point for the hawkeye binary.
// It replays recorded UI events through the collector and runs a local
// ingestion server for development.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/polisai/hawkeye-go/pkg/logging"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for hawkeye
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hawkeye",
		Short: "HawkEye client telemetry collector",
		Long: `HawkEye captures user interaction signals, batches them and delivers
them to an ingestion endpoint.

Examples:
  hawkeye replay --config hawkeye.yaml --input session.jsonl
  hawkeye devserver --addr :8080 --db events.db --api-key dev-key`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json, text)")

	rootCmd.AddCommand(newReplayCmd(), newDevServerCmd(), newVersionCmd())
	return rootCmd
}

// loggerFromFlags builds a logger, preferring flag values over the supplied
// fallbacks.
func loggerFromFlags(cmd *cobra.Command, out io.Writer, fallbackLevel, fallbackFormat string) (*slog.Logger, error) {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-format flag: %w", err)
	}
	if level == "" {
		level = fallbackLevel
	}
	if format == "" {
		format = fallbackFormat
	}
	return logging.New(logging.Config{Level: level, Format: format, Output: out}), nil
}
