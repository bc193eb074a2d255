// Package main implements the careers_finder CLI, which locates company
// careers pages and extracts their open positions.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/careers-finder/internal/config"
	"github.com/jonathan/careers-finder/internal/trace"
)

var rootCmd = &cobra.Command{
	Use:   "careers_finder",
	Short: "Find company careers pages and their open positions",
	Long: "careers_finder searches for each company's careers page, accepts it when the domain " +
		"resembles the company name or the page mentions hiring, and optionally extracts the open positions.",
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

var (
	configPath string
	logLevel   string
	logDir     string
	cfg        config.Config
	logFile    io.Closer
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Also write logs to a timestamped file in this directory")
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := loadConfig(configPath, os.LookupEnv)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if logDir != "" {
		loaded.LogDir = logDir
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logger, closer, err := trace.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return err
	}
	logFile = closer
	slog.SetDefault(logger)
	cmd.SetContext(trace.WithLogger(cmd.Context(), logger))
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

// loadConfig layers the config file, then the environment, over the
// built-in defaults.
func loadConfig(path string, lookup func(string) (string, bool)) (config.Config, error) {
	var file config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.Config{}, err
		}
		file = *loaded
	}
	if err := file.ApplyEnv(lookup); err != nil {
		return config.Config{}, err
	}
	return file.MergeWithDefaults(config.Default()), nil
}
