package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/driftline/driftline/internal/cliconfig"
	"github.com/driftline/driftline/internal/telemetry"
)

var (
	// Version is the current version of driftline (overridden by ldflags at build time).
	Version = "0.1.0"

	cfgPath      string
	storePath    string
	jsonOutput   bool
	logFile      string
	traceEnabled bool

	cfg cliconfig.Config

	// telemetryShutdown is set by PersistentPreRunE when --trace installs
	// real OTel exporters; main flushes it after Execute returns, on
	// every exit path (cobra's PersistentPostRunE hooks are skipped when
	// RunE returns an error, so shutdown can't live there).
	telemetryShutdown telemetry.Shutdown
)

var rootCmd = &cobra.Command{
	Use:   "driftline",
	Short: "driftline - a per-column last-write-wins CRDT record store",
	Long: `driftline keeps one record store per node converging with its peers
by tracking a Lamport clock and a per-column version on every field,
instead of locking records or electing a leader.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logFile != "" {
			cmd.SetErr(&lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			})
		}

		if traceEnabled {
			shutdown, err := telemetry.Init("driftline")
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			telemetryShutdown = shutdown
		}

		resolvedCfgPath := cfgPath
		if resolvedCfgPath == "" {
			if _, err := os.Stat("driftline.toml"); err == nil {
				resolvedCfgPath = "driftline.toml"
			}
		}

		loaded, err := cliconfig.Load(resolvedCfgPath, nil)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		if storePath != "" {
			cfg.StorePath = storePath
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to driftline.toml (default: auto-discover)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the SQLite snapshot file (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write command errors to a rotating log file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "emit OTel traces/metrics for merge and extraction calls to stdout")
}

func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	err := rootCmd.Execute()

	if telemetryShutdown != nil {
		if shutdownErr := telemetryShutdown(context.Background()); shutdownErr != nil {
			fmt.Fprintf(os.Stderr, "driftline: %v\n", shutdownErr)
		}
	}

	if err != nil {
		os.Exit(1)
	}
}
