// Conclave deliberation server — classifies policy questions, fans out to
// data sources and analysis agents, moderates the debate, and streams stage
// events over WebSocket.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/conclave-ai/conclave/pkg/agents"
	"github.com/conclave-ai/conclave/pkg/api"
	"github.com/conclave-ai/conclave/pkg/config"
	"github.com/conclave-ai/conclave/pkg/events"
	"github.com/conclave-ai/conclave/pkg/prefetch"
	"github.com/conclave-ai/conclave/pkg/retrieval"
	"github.com/conclave-ai/conclave/pkg/session"
	"github.com/conclave-ai/conclave/pkg/version"
	"github.com/conclave-ai/conclave/pkg/workflow"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// buildEmbedderService wires the embedder factory from EMBEDDER_URL. When the
// variable is unset the factory always fails and retrieval/clustering run on
// their lexical fallbacks.
func buildEmbedderService() *retrieval.EmbedderService {
	url := os.Getenv("EMBEDDER_URL")
	return retrieval.NewEmbedderService(func(ctx context.Context) (retrieval.Embedder, error) {
		if url == "" {
			return nil, retrieval.ErrEmbedderUnavailable
		}
		embedder := retrieval.NewHTTPEmbedder(url)
		// Probe once so a dead service fails the warm-up, not a request.
		if _, err := embedder.Embed(ctx, []string{"warmup"}); err != nil {
			return nil, err
		}
		return embedder, nil
	})
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting conclave",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	stats := cfg.Stats()
	slog.Info("Configuration loaded",
		"sources", stats.Sources,
		"debate_profiles", stats.DebateProfiles,
		"meta_phrases", stats.MetaPhrases,
		"freshness_horizons", stats.FreshnessHorizons)

	// 2. Prefetch source connectors
	sources, closeSources := prefetch.BuildSources(ctx, cfg)
	defer closeSources()

	// 3. Embedder service (optional warm-up)
	embedders := buildEmbedderService()
	if cfg.Defaults.WarmEmbedder() {
		warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := embedders.Warm(warmCtx); err != nil {
			slog.Warn("Embedder warm-up failed, continuing with lexical fallbacks",
				"error", err)
		}
		warmCancel()
	}

	// 4. Agent registry. Deployments register their agent implementations
	// here before the first request arrives.
	registry := agents.NewRegistry()

	// 5. Pipeline and serving infrastructure
	pipeline := workflow.New(cfg, workflow.Options{
		Sources:   sources,
		Embedders: embedders,
		Registry:  registry,
	})
	connManager := events.NewConnectionManager(10 * time.Second)
	sessions := session.NewManager()
	server := api.NewServer(cfg, pipeline, sessions, connManager)

	// 6. Start HTTP server (non-blocking)
	httpPort := getEnv("HTTP_PORT", cfg.Server.HTTPPort)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: stop accepting, cancel in-flight requests, and
	// let their done events drain through the connection manager.
	list := sessions.List()
	for i := range list {
		if active, err := sessions.Get(list[i].ID); err == nil {
			active.Cancel()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
