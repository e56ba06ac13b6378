package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5435"`
	PGUser      string `env:"PGUSER" envDefault:"fuel"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"fuel"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"fuel"`
	PGMaxConns  int32  `env:"PG_MAX_CONNS" envDefault:"20"`
	// MigrationsDir overrides the db/migrations lookup.
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	PGMinConns  int32  `env:"PG_MIN_CONNS" envDefault:"2"`

	// Authoritative store
	StoreBackend      string `env:"STORE_BACKEND" envDefault:"postgres"`
	CatalogPath       string `env:"CATALOG_PATH"`
	BoostResetWeekday string `env:"BOOST_RESET_WEEKDAY" envDefault:"Monday"`
	Timezone          string `env:"TIMEZONE" envDefault:"UTC"`

	// JWT
	JWTSecret       string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTPlayerExpiry string `env:"JWT_PLAYER_EXPIRY" envDefault:"24h"`
	JWTAdminExpiry  string `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Completion submissions per player per minute
	SubmitRatePerMinute int `env:"SUBMIT_RATE_PER_MINUTE" envDefault:"30"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}
	if _, err := c.ResetWeekday(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if c.StoreBackend == BackendPostgres && (c.PGMaxConns <= 0 || c.PGMinConns > c.PGMaxConns) {
		return fmt.Errorf("PG_MIN_CONNS (%d) must not exceed a positive PG_MAX_CONNS (%d)", c.PGMinConns, c.PGMaxConns)
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// ResetWeekday parses BOOST_RESET_WEEKDAY (case-insensitive English day name).
func (c *Config) ResetWeekday() (time.Weekday, error) {
	return ParseWeekday(c.BoostResetWeekday)
}

// Location loads TIMEZONE, the zone the server uses for "today" in read models.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

// ParseWeekday parses an English day name such as "monday" or "Mon".
func ParseWeekday(s string) (time.Weekday, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if want == name || (len(want) == 3 && strings.HasPrefix(name, want)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
