// Package cli provides the sercha-rag command line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/app"
	"github.com/custodia-labs/sercha-rag/internal/config"
)

var (
	version = "dev"

	configPath string
	envFile    string
)

// newApp builds the application. Tests replace it to inject options.
var newApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
	logger := cfg.Log.NewLogger(os.Stderr)
	return app.New(ctx, cfg, logger, app.Options{})
}

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Retrieval-augmented question answering over a document corpus",
	Long: `sercha-rag chunks and embeds documents into a vector index and
answers questions from the passages most similar to the query.

Configuration is read from an optional YAML file, a .env file and the
environment, later sources overriding earlier ones.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file (ignored if missing)")
}

// Execute runs the root command with the given build version.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

// loadConfig reads the env file and configuration for the current invocation.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return config.Load(configPath)
}

// openApp loads configuration and wires the application.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}
