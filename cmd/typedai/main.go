// TypedAI server — runs the agent runtime, the worker pool, and the
// HTTP API; optionally wires a GitLab host for merge-request reviews.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/typedai/typedai/pkg/agent"
	"github.com/typedai/typedai/pkg/api"
	"github.com/typedai/typedai/pkg/cleanup"
	"github.com/typedai/typedai/pkg/config"
	"github.com/typedai/typedai/pkg/llm"
	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/queue"
	"github.com/typedai/typedai/pkg/review"
	"github.com/typedai/typedai/pkg/scm"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/store"
	"github.com/typedai/typedai/pkg/store/memory"
	"github.com/typedai/typedai/pkg/store/postgres"
	"github.com/typedai/typedai/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	podID := resolvePodID()
	slog.Info("Starting TypedAI",
		"version", version.Full(),
		"pod_id", podID,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration and the single-user identity
	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	user := models.User{
		ID:      cfg.User.ID,
		Name:    cfg.User.Name,
		Email:   cfg.User.Email,
		Enabled: true,
	}
	scope.EnableSingleUser(user)

	// 2. Storage
	var stores *store.Stores
	switch cfg.Database {
	case "postgres":
		dbConfig, err := postgres.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		client, err := postgres.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		stores = client.Stores()
		slog.Info("Connected to PostgreSQL database")
	default:
		stores = memory.New()
		slog.Info("Using in-memory storage; agent state will not survive restarts")
	}

	// 3. One-time startup orphan recovery
	if err := queue.RecoverStartupOrphans(ctx, stores.Agents, cfg.Queue.OrphanThreshold); err != nil {
		slog.Error("Failed to recover startup orphans", "error", err)
		// Non-fatal, the periodic scan will retry
	}

	// 4. LLM stack: provider fallback chain wrapped with call recording
	providers := llm.FromEnv()
	configured := 0
	for _, p := range providers {
		if p.IsConfigured() {
			configured++
		}
	}
	if configured == 0 {
		slog.Warn("No LLM provider credentials found; agent executions will fail until one is configured")
	} else {
		slog.Info("LLM providers initialized", "configured", configured, "total", len(providers))
	}
	planner := llm.NewRecorder(llm.NewComposite(providers...), stores.LlmCalls)

	runner := agent.NewRunner(stores, planner, agent.Config{})

	// 5. Worker pool (before the HTTP server)
	pool := queue.NewPool(podID, stores.Agents, queue.Config{
		WorkerCount:        cfg.Queue.WorkerCount,
		QueueDepth:         cfg.Queue.QueueDepth,
		ExecutionTimeout:   cfg.Queue.ExecutionTimeout,
		HeartbeatInterval:  cfg.Queue.HeartbeatInterval,
		OrphanThreshold:    cfg.Queue.OrphanThreshold,
		OrphanScanInterval: cfg.Queue.OrphanScanInterval,
	})
	if err := pool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 6. Review rules and the optional GitLab-backed review engine
	rulesFile := cfg.Review.RulesFile
	if rulesFile != "" && !filepath.IsAbs(rulesFile) {
		rulesFile = filepath.Join(*configDir, rulesFile)
	}
	if err := review.SeedRules(ctx, stores.ReviewConfigs, rulesFile); err != nil {
		slog.Error("Failed to seed review rules", "error", err)
		os.Exit(1)
	}

	var engine *review.Engine
	host, err := scm.NewGitLabFromEnv()
	switch {
	case err == nil:
		engine = review.NewEngine(host, planner, stores, cfg.Review.MaxParallel)
		slog.Info("GitLab review engine initialized")
	case errors.Is(err, scm.ErrNotConfigured):
		slog.Info("GitLab not configured; merge-request reviews disabled")
	default:
		slog.Error("Failed to initialize GitLab client", "error", err)
		os.Exit(1)
	}

	// 7. Agent retention
	retention := cleanup.NewService(stores.Agents, cleanup.Config{
		Retention: cfg.Retention.AgentRetention,
		Interval:  cfg.Retention.Interval,
	})
	retention.Start(scope.WithUser(ctx, user))

	// 8. HTTP server (non-blocking)
	server := api.NewServer(cfg, stores, runner, pool, engine)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("TypedAI started successfully",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: retention first, then the pool so active
	// executions can park, then the HTTP listener.
	retention.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded; interrupted executions will be orphan-recovered")
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
