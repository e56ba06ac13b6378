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

	"github.com/fuelpoints/platform/internal/app"
	"github.com/fuelpoints/platform/internal/auth"
	"github.com/fuelpoints/platform/internal/authority"
	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/infra"
	"github.com/fuelpoints/platform/internal/ledger"
	"github.com/fuelpoints/platform/internal/memstore"
	"github.com/fuelpoints/platform/internal/settlement"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	resetDay, _ := cfg.ResetWeekday()
	loc, _ := cfg.Location()

	// Parse JWT expiry durations
	playerExpiry, err := time.ParseDuration(cfg.JWTPlayerExpiry)
	if err != nil {
		return fmt.Errorf("parse player JWT expiry: %w", err)
	}
	adminExpiry, err := time.ParseDuration(cfg.JWTAdminExpiry)
	if err != nil {
		return fmt.Errorf("parse admin JWT expiry: %w", err)
	}
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, playerExpiry, adminExpiry)

	// Catalog and rules
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	rules := settlement.NewRules(cat, resetDay)

	// Authoritative store
	var (
		store  authority.Full
		health func(ctx context.Context) error
	)
	switch cfg.StoreBackend {
	case infra.BackendMemory:
		store = memstore.New(rules, clock.Real{}, loc)
		logger.Warn("using in-memory store; progression is lost on restart")
	default:
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		logger.Info("connected to postgres")

		if err := infra.RunMigrations(cfg.MigrationsDir, cfg.DSN(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		store = ledger.NewStore(pool, ledger.NewEngine(ledger.DefaultRepositories()), rules, clock.Real{}, loc)
		health = func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) }
	}

	hub := infra.NewWSHub(logger, originChecker(cfg.CORSAllowedOrigins))

	r := app.NewRouter(app.RouterDeps{
		Store:               store,
		JWTMgr:              jwtMgr,
		Hub:                 hub,
		Clock:               clock.Real{},
		Location:            loc,
		Logger:              logger,
		Health:              health,
		SubmitRatePerMinute: cfg.SubmitRatePerMinute,
		CORSOrigin:          cfg.CORSAllowedOrigins,
	})

	// Start server. No WriteTimeout: /ws connections are long-lived and
	// manage their own deadlines.
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "backend", cfg.StoreBackend, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

func originChecker(allowed string) func(*http.Request) bool {
	if allowed == "" || allowed == "*" {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}
