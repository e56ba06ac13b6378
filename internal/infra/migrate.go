package infra

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// NewMigrator opens golang-migrate over the SQL files in dir.
func NewMigrator(dir, dsn string) (*migrate.Migrate, error) {
	abs, err := filepath.Abs(MigrationsDir(dir))
	if err != nil {
		return nil, fmt.Errorf("resolve migrations dir: %w", err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(abs), dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations applies all pending migrations from dir (see MigrationsDir).
func RunMigrations(dir, dsn string, logger *slog.Logger) error {
	m, err := NewMigrator(dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied", "version", version, "dirty", dirty)
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	return nil
}

// MigrationsDir returns dir when set, otherwise the nearest db/migrations
// found walking up from the working directory. Tests run from package
// directories, binaries usually from the repository root.
func MigrationsDir(dir string) string {
	if dir != "" {
		return dir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join("db", "migrations")
	}
	for d := cwd; ; d = filepath.Dir(d) {
		candidate := filepath.Join(d, "db", "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		if filepath.Dir(d) == d {
			return filepath.Join("db", "migrations")
		}
	}
}
