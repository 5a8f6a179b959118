package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/media-curator/media-curator/internal/cluster"
	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/dedupe"
	"github.com/media-curator/media-curator/internal/features"
	"github.com/media-curator/media-curator/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the curator API server",
	Long: `Start the JSON API over the media index: search, scans, duplicate
detection, face clusters and stats. Prometheus metrics are exposed on
/metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("library", "", "Default library root for API-triggered scans")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg := config.Load()
	port, host := resolveServeHostPort(cmd)

	libraryRoot := mustGetString(cmd, "library")
	if libraryRoot == "" {
		libraryRoot = os.Getenv("CURATOR_LIBRARY_DIR")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ds, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	provider := features.NewAnalyzerClient(cfg.Analyzer.URL)
	server := web.NewServer(web.Deps{
		Store:       ds,
		Provider:    provider,
		Pipeline:    newPipeline(ds, cfg, nil),
		Detector:    dedupe.NewDetector(ds, cfg.Dedupe),
		Clusterer:   cluster.NewClusterer(ds, cfg.Cluster),
		LibraryRoot: libraryRoot,
	}, host, port)

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

	fmt.Printf("Starting curator API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
