//go:build integration

package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fuelpoints/platform/internal/app"
	"github.com/fuelpoints/platform/internal/auth"
	"github.com/fuelpoints/platform/internal/catalog"
	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/infra"
	"github.com/fuelpoints/platform/internal/ledger"
	"github.com/fuelpoints/platform/internal/settlement"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	TestJWTSecret = "integration-test-secret-at-least-32-bytes"
	TestDBHost    = "localhost"
	TestDBPort    = 5435
	TestDBUser    = "fuel"
	TestDBPass    = "fuel"
	TestDBName    = "fuel_test"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server *httptest.Server
	Pool   *pgxpool.Pool
	JWTMgr *auth.JWTManager
	Store  *ledger.Store
	Hub    *infra.WSHub
	t      *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

// testConfig points the production pool and migration code at the test
// database; dbName selects the bootstrap or the test database.
func testConfig(dbName string) *infra.Config {
	return &infra.Config{
		PGHost:       TestDBHost,
		PGPort:       TestDBPort,
		PGUser:       TestDBUser,
		PGPassword:   TestDBPass,
		PGDatabase:   dbName,
		PGMaxConns:   20,
		PGMinConns:   1,
		StoreBackend: infra.BackendPostgres,
	}
}

// ensureTestDB creates the test database from the bootstrap one if needed.
func ensureTestDB(ctx context.Context) error {
	boot, err := infra.NewPostgresPool(ctx, testConfig("fuel"))
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer boot.Close()

	var exists bool
	if err := boot.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists); err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := boot.Exec(ctx, "CREATE DATABASE "+TestDBName); err != nil {
		return fmt.Errorf("create test db: %w", err)
	}
	return nil
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if poolErr = ensureTestDB(ctx); poolErr != nil {
			return
		}
		cfg := testConfig(TestDBName)
		if poolErr = infra.RunMigrations("", cfg.DSN(), slog.New(slog.DiscardHandler)); poolErr != nil {
			return
		}
		sharedPool, poolErr = infra.NewPostgresPool(ctx, cfg)
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

// NewTestEnv creates a test environment with an httptest.Server backed by
// the real router and a Postgres ledger store.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)

	jwtMgr := auth.NewJWTManager(TestJWTSecret, 24*time.Hour, 8*time.Hour)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	rules := settlement.NewRules(catalog.Default(), time.Monday)
	store := ledger.NewStore(pool, ledger.NewEngine(ledger.DefaultRepositories()), rules, clock.Real{}, time.UTC)
	hub := infra.NewWSHub(logger, nil)

	router := app.NewRouter(app.RouterDeps{
		Store:    store,
		JWTMgr:   jwtMgr,
		Hub:      hub,
		Clock:    clock.Real{},
		Location: time.UTC,
		Logger:   logger,
		Health:   func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) },
		// integration tests hammer a single player
		SubmitRatePerMinute: 1000,
	})

	server := httptest.NewServer(router)

	env := &TestEnv{
		Server: server,
		Pool:   pool,
		JWTMgr: jwtMgr,
		Store:  store,
		Hub:    hub,
		t:      t,
	}

	t.Cleanup(func() {
		server.Close()
		env.CleanAll()
	})

	// Clean before test to ensure isolation
	env.CleanAll()

	return env
}
