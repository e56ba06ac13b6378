package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fuelpoints/platform/internal/client"
	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/engine"
	"github.com/fuelpoints/platform/internal/infra"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Settings is the CLI's environment configuration.
type Settings struct {
	APIURL         string        `env:"FUEL_API_URL" envDefault:"http://localhost:3100"`
	Token          string        `env:"FUEL_TOKEN"`
	Timezone       string        `env:"FUEL_TIMEZONE"`
	ResyncDebounce time.Duration `env:"FUEL_RESYNC_DEBOUNCE" envDefault:"300ms"`
	Verbose        bool          `env:"FUEL_VERBOSE" envDefault:"false"`
	// BoostResetWeekday must match the server's BOOST_RESET_WEEKDAY.
	BoostResetWeekday string `env:"FUEL_BOOST_RESET_WEEKDAY" envDefault:"Monday"`
}

// LoadSettings parses FUEL_* variables.
func LoadSettings() (*Settings, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Location resolves FUEL_TIMEZONE, falling back to the system zone.
func (s *Settings) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("FUEL_TIMEZONE: %w", err)
	}
	return loc, nil
}

// ResetWeekday parses FUEL_BOOST_RESET_WEEKDAY.
func (s *Settings) ResetWeekday() (time.Weekday, error) {
	d, err := infra.ParseWeekday(s.BoostResetWeekday)
	if err != nil {
		return 0, fmt.Errorf("FUEL_BOOST_RESET_WEEKDAY: %w", err)
	}
	return d, nil
}

// applyFlags overrides settings with any persistent flag set on the command line.
func (s *Settings) applyFlags(cmd *cobra.Command) {
	if f := cmd.Flag("api-url"); f != nil && f.Changed {
		s.APIURL = f.Value.String()
	}
	if f := cmd.Flag("timezone"); f != nil && f.Changed {
		s.Timezone = f.Value.String()
	}
	if f := cmd.Flag("verbose"); f != nil && f.Changed {
		s.Verbose = f.Value.String() == "true"
	}
}

// PlayerFromToken reads the subject of a player token. The signature is not
// checked here; the API verifies it on every call.
func PlayerFromToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, fmt.Errorf("FUEL_TOKEN is not set")
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return uuid.Nil, fmt.Errorf("parse FUEL_TOKEN: %w", err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("FUEL_TOKEN subject is not a player id: %w", err)
	}
	return id, nil
}

// session is one connected player: the HTTP store and a synced engine.
type session struct {
	settings *Settings
	store    *client.HTTPStore
	engine   *engine.Engine
	logger   *slog.Logger
	out      io.Writer
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	settings, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	settings.applyFlags(cmd)
	playerID, err := PlayerFromToken(settings.Token)
	if err != nil {
		return nil, err
	}
	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if settings.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store := client.NewHTTPStore(settings.APIURL, settings.Token)
	eng := engine.New(store, clock.Real{}, logger, engine.Config{
		PlayerID:    playerID,
		Location:    loc,
		ResyncDelay: settings.ResyncDebounce,
	})
	if err := eng.Resync(ctx); err != nil {
		eng.Close()
		return nil, fmt.Errorf("load player state: %w", err)
	}
	pool, err := store.ListBoostPool(ctx, playerID, eng.Today())
	if err != nil {
		eng.Close()
		return nil, fmt.Errorf("load boost pool: %w", err)
	}
	eng.SetBoostPool(pool)

	return &session{settings: settings, store: store, engine: eng, logger: logger, out: cmd.OutOrStdout()}, nil
}

func (s *session) Close() { s.engine.Close() }
