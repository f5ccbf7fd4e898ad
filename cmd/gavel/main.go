// Gavel - Insurance claim adjudication that deploys in 60 seconds.
// Copyright (c) 2025 openclaims
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openclaims/gavel/internal/api"
	"github.com/openclaims/gavel/internal/bus"
	"github.com/openclaims/gavel/internal/domain"
	"github.com/openclaims/gavel/internal/engine"
	"github.com/openclaims/gavel/internal/ledger"
	"github.com/openclaims/gavel/internal/policy"
	"github.com/openclaims/gavel/internal/repository"
	"github.com/openclaims/gavel/internal/rules"
	"github.com/openclaims/gavel/internal/worker"
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
	if os.Getenv("GAVEL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting gavel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for production mode via environment
	if os.Getenv("GAVEL_ENV") == "production" {
		cfg = domain.ProductionConfig()
		slog.Info("running in production mode")
	}

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"ledger", cfg.Ledger.Type,
		"eventbus", cfg.EventBus.Type,
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

	// Initialize duplicate Ledger
	dupLedger, err := ledger.New(cfg.Ledger)
	if err != nil {
		slog.Error("failed to initialize duplicate ledger", "error", err)
		os.Exit(1)
	}
	defer dupLedger.Close()
	slog.Info("duplicate ledger initialized", "type", cfg.Ledger.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Policy Engine
	policies, err := policy.NewEngine()
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}

	// Load policy rules from database (no hardcoded defaults - configure via API)
	if err := loadPoliciesFromDatabase(ctx, repo, policies); err != nil {
		slog.Error("failed to load policy rules", "error", err)
		os.Exit(1)
	}
	slog.Info("policy engine initialized", "policies_count", policies.Count())

	// Initialize claim Rules and Decision Engine
	claimRules := rules.New(cfg.Thresholds, dupLedger, logger)
	decisionEngine := engine.New(claimRules, policies, logger)
	slog.Info("decision engine initialized",
		"max_claim_amount", cfg.Thresholds.MaxClaimAmount,
		"auto_approve_amount", cfg.Thresholds.AutoApproveAmount,
	)

	// Initialize async Worker
	asyncWorker := worker.NewWorker(busImpl, repo, decisionEngine)
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start async worker", "error", err)
	} else {
		slog.Info("async worker started")
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, dupLedger, busImpl, decisionEngine, policies, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("gavel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("gavel shutdown complete")
}

// loadPoliciesFromDatabase loads payer policy rules from the database into
// the engine. All policy rules are configured via POST /policies - no
// hardcoded defaults.
func loadPoliciesFromDatabase(ctx context.Context, repo domain.Repository, policies *policy.Engine) error {
	dbRules, err := repo.ListPolicyRules(ctx)
	if err != nil {
		slog.Warn("failed to list policy rules from database", "error", err)
		return nil // Start with no policies - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading policy rules from database", "count", len(dbRules))
		return policies.LoadAll(dbRules)
	}

	slog.Info("no policy rules in database - configure via POST /policies API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               ⚖️  GAVEL                    ║")
	fmt.Println("  ║     Claim Adjudication Engine             ║")
	fmt.Println("  ║      Every claim, decided.                ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /claims                  - Submit a claim for async adjudication")
	fmt.Println("    POST /claims/evaluate         - Adjudicate a claim synchronously")
	fmt.Println("    POST /claims/batch            - Adjudicate a batch of claims")
	fmt.Println("    POST /claims/extracted        - Create a draft claim from extraction output")
	fmt.Println("    GET  /claims/{id}             - Get claim by ID")
	fmt.Println("    GET  /claims/{id}/explanation - Human-readable decision report")
	fmt.Println("    GET  /claims/{id}/history     - Claim audit trail")
	fmt.Println("    GET  /decisions/{id}          - Get decision by ID")
	fmt.Println("    GET  /policies                - List payer policy rules")
	fmt.Println("    POST /policies                - Create a payer policy rule")
	fmt.Println("    POST /policies/reload         - Hot-reload policy rules from database")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
