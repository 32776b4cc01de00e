// XAI - Explainable alert triage for security operations.
// Copyright (c) 2026 dB-Digital-Fox
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/api"
	"github.com/dB-Digital-Fox/XAI/internal/bus"
	"github.com/dB-Digital-Fox/XAI/internal/cache"
	"github.com/dB-Digital-Fox/XAI/internal/domain"
	"github.com/dB-Digital-Fox/XAI/internal/feature"
	"github.com/dB-Digital-Fox/XAI/internal/feedback"
	"github.com/dB-Digital-Fox/XAI/internal/model"
	"github.com/dB-Digital-Fox/XAI/internal/policy"
	"github.com/dB-Digital-Fox/XAI/internal/repository"
	"github.com/dB-Digital-Fox/XAI/internal/triage"
	"github.com/dB-Digital-Fox/XAI/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("XAI_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting xai",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("XAI_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"model", cfg.Model.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Load the scoring model. Triage cannot run without one.
	scorer, err := model.Load(cfg.Model, cfg.ModelPath)
	if err != nil {
		slog.Error("failed to load model", "path", cfg.ModelPath, "error", err)
		os.Exit(1)
	}
	slog.Info("model loaded", "type", cfg.Model.Type, "path", cfg.ModelPath)

	// Load the feature map document. A missing file falls back to the
	// built-in schema; a malformed one is fatal.
	features, err := loadFeatureMap(cfg.FeatureMapPath)
	if err != nil {
		slog.Error("failed to load feature map", "path", cfg.FeatureMapPath, "error", err)
		os.Exit(1)
	}
	slog.Info("feature map loaded", "features", features.Len())

	// Load the policy document, same fallback rules.
	policyEngine, err := loadPolicy(cfg.PolicyPath, logger)
	if err != nil {
		slog.Error("failed to load policy", "path", cfg.PolicyPath, "error", err)
		os.Exit(1)
	}
	slog.Info("policy loaded", "sources", len(policyEngine.Config().Sources), "overrides", len(policyEngine.Config().Overrides))

	// Compose the triage pipeline
	var background [][]float64
	if lin, ok := scorer.(*model.Linear); ok {
		background = lin.Background()
	}
	service, err := triage.New(triage.Config{
		Model:      scorer,
		Features:   features,
		Policy:     policyEngine,
		Background: background,
		Repository: repo,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Logger:     logger,
	})
	if err != nil {
		slog.Error("failed to build triage service", "error", err)
		os.Exit(1)
	}
	slog.Info("triage service initialized", "engine_version", triage.EngineVersion)

	// Initialize Feedback Manager
	feedbackMgr := feedback.NewManager(repo)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("XAI_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, service)

		tenantIDs := []string{}
		if envTenants := os.Getenv("XAI_TENANTS"); envTenants != "" {
			for _, id := range strings.Split(envTenants, ",") {
				if id = strings.TrimSpace(id); id != "" {
					tenantIDs = append(tenantIDs, id)
				}
			}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg, service, feedbackMgr, repo, cacheImpl, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("xai is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("xai shutdown complete")
}

// applyEnvOverrides lets deployments point at documents and the scorer
// without editing code.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("XAI_FEATURE_MAP"); v != "" {
		cfg.FeatureMapPath = v
	}
	if v := os.Getenv("XAI_POLICY"); v != "" {
		cfg.PolicyPath = v
	}
	if v := os.Getenv("XAI_MODEL"); v != "" {
		cfg.ModelPath = v
	}
	if v := os.Getenv("XAI_MODEL_URL"); v != "" {
		cfg.Model.Type = "remote"
		cfg.Model.RemoteURL = v
	}
}

// loadFeatureMap reads the document at path, falling back to the built-in
// schema when the file does not exist.
func loadFeatureMap(path string) (*feature.Map, error) {
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Warn("feature map not found, using built-in schema", "path", path)
			path = ""
		}
	}
	return feature.Load(path)
}

// loadPolicy reads the document at path, falling back to the default policy
// when the file does not exist.
func loadPolicy(path string, logger *slog.Logger) (*policy.Engine, error) {
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Warn("policy not found, using default policy", "path", path)
			path = ""
		}
	}
	cfg, err := policy.Load(path)
	if err != nil {
		return nil, err
	}
	return policy.New(cfg, logger)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  XAI - Explainable Alert Triage")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /explain           - Score and explain an alert")
	fmt.Println("    GET  /explanations      - List recent explanations")
	fmt.Println("    GET  /explanations/{id} - Get explanation by ID")
	fmt.Println("    POST /feedback          - Record analyst feedback")
	fmt.Println("    GET  /metrics           - Feedback aggregates")
	fmt.Println("    GET  /features          - Active feature schema")
	fmt.Println("    POST /config/reload     - Hot-reload documents")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println()
}
