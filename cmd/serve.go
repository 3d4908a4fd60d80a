package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/kozaktomas/cbir/internal/web"
	"github.com/kozaktomas/cbir/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the cbir web server.
The web server exposes the JSON API for browsing the corpus, ranking it
against a query image and refining rankings with relevance feedback.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies")
}

// initNeighborIndex builds the in-memory HNSW index used for neighbour previews.
func initNeighborIndex(snap *retrieval.Snapshot) *database.NeighborIndex {
	fmt.Printf("Building in-memory HNSW index for neighbour previews...\n")
	start := time.Now()
	index := database.NewNeighborIndex()
	if err := index.Build(snap.Normalized); err != nil {
		fmt.Printf("Warning: Failed to build HNSW index: %v\n", err)
		fmt.Printf("Neighbour previews will be unavailable\n")
		return nil
	}
	fmt.Printf("HNSW index built with %d images in %s\n", index.Len(), formatDuration(time.Since(start)))
	return index
}

// resolveServeHostPort resolves port, host and session secret. Flags set on
// the command line win over WEB_* environment variables.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string, string) {
	port, host, sessionSecret := cfg.Web.Port, cfg.Web.Host, cfg.Web.SessionSecret
	if cmd.Flags().Changed("port") {
		port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		host = mustGetString(cmd, "host")
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		sessionSecret = secret
	}
	return port, host, sessionSecret
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	release, err := initBackend(cfg)
	if err != nil {
		return err
	}
	defer release()

	engine, err := loadEngine(context.Background(), cfg)
	if err != nil {
		return err
	}

	// A nil *NeighborIndex must not end up in a non-nil interface
	var neighbors handlers.NeighborFinder
	if index := initNeighborIndex(engine.Snapshot()); index != nil {
		neighbors = index
	}

	sessionStore := database.GetSessionStore()
	if sessionStore != nil {
		fmt.Printf("Session persistence enabled (%s)\n", database.BackendName())
	}

	port, host, sessionSecret := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(cfg, engine, neighbors, port, host, sessionSecret, sessionStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting cbir web API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
