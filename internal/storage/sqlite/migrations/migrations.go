// Package migrations has the task history schema and applies it with golang-migrate.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/comfylaunch/internal/log"
)

//go:embed sql/*.sql
var files embed.FS

// VersionsTable is where the applied schema version is stored.
const VersionsTable = "schema_migrations"

// Apply brings the history schema to the latest version and returns it.
// A database created by a newer launcher is rejected instead of being downgraded.
func Apply(ctx context.Context, db *sql.DB, logger log.Logger) (uint, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	src, err := iofs.New(files, "sql")
	if err != nil {
		return 0, fmt.Errorf("could not load embedded migrations: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warningf("Could not close migrations source: %v", err)
		}
	}()

	latest, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("could not read migrations: %w", err)
	}
	for {
		next, err := src.Next(latest)
		if err != nil {
			break
		}
		latest = next
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: VersionsTable})
	if err != nil {
		return 0, fmt.Errorf("could not create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return 0, fmt.Errorf("could not create migrate instance: %w", err)
	}

	current, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return 0, fmt.Errorf("could not read schema version: %w", err)
	case dirty:
		return current, fmt.Errorf("history schema version %d is dirty, remove the history database", current)
	case current > latest:
		return current, fmt.Errorf("history schema version %d is newer than the supported %d", current, latest)
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("could not migrate history schema: %w", err)
	}

	logger.Debugf("History schema at version %d", latest)
	return latest, nil
}
