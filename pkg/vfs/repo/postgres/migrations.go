package postgres

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus describes the schema version of a database
type MigrationStatus struct {
	Version uint
	Latest  uint
	Dirty   bool
}

// Current reports whether the schema is at the latest version
func (s MigrationStatus) Current() bool {
	return !s.Dirty && s.Version == s.Latest
}

func newMigrate(dsn string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m, nil
}

// migrateURL rewrites a postgres DSN for the pgx5 migrate driver.
func migrateURL(dsn string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme)
		}
	}
	return dsn
}

// Migrate applies all pending migrations to the database at dsn
func Migrate(dsn string, logger *slog.Logger) error {
	m, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// CheckMigrations reports the schema version of the database at dsn
func CheckMigrations(dsn string) (MigrationStatus, error) {
	latest, err := latestVersion()
	if err != nil {
		return MigrationStatus{}, err
	}
	status := MigrationStatus{Latest: latest}

	m, err := newMigrate(dsn)
	if err != nil {
		return status, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return status, nil
		}
		return status, fmt.Errorf("failed to get database version: %w", err)
	}
	status.Version = version
	status.Dirty = dirty
	return status, nil
}

func latestVersion() (uint, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration files: %w", err)
	}
	defer source.Close()

	version, err := source.First()
	if err != nil {
		return 0, fmt.Errorf("no migrations found: %w", err)
	}
	for {
		next, err := source.Next(version)
		if err != nil {
			return version, nil
		}
		version = next
	}
}
