package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpserver "github.com/custodia-labs/sercha-rag/internal/adapters/driving/http"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the retrieval API. GET /query answers a question, POST /api/v1/retrieve
returns ranked passages and POST /api/v1/ingest indexes a folder of documents.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	server := httpserver.NewServer(httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         a.Logger,
	}, httpserver.Dependencies{
		Retrieval: a.Retrieval,
		Answer:    a.Answer,
		Ingestion: a.Ingestion,
		Corpus:    a.Corpus,
		Health:    a.Services,
	})

	return server.Start(ctx)
}

// commandContext returns the command context, never nil.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
