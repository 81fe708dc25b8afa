package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migration commands understood by Migrate
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateStatus  = "status"
	MigrateVersion = "version"
)

// NewMigrationProvider returns a goose provider for the embedded schema.
func NewMigrationProvider(db *sql.DB, dialect goose.Dialect) (*goose.Provider, error) {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Migrate runs a migration command against db.
func Migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, command string, logger *slog.Logger) error {
	logger = logger.With("component", "migrations", "command", command)

	provider, err := NewMigrationProvider(db, dialect)
	if err != nil {
		return err
	}

	switch command {
	case MigrateUp:
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		for _, r := range results {
			logger.Info("applied migration",
				"version", r.Source.Version,
				"path", r.Source.Path,
				"duration_ms", r.Duration.Milliseconds())
		}
		if len(results) == 0 {
			logger.Info("database schema is up to date")
		}

	case MigrateDown:
		r, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("rolled back migration",
			"version", r.Source.Version,
			"path", r.Source.Path)

	case MigrateStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("migration status failed: %w", err)
		}
		for _, s := range statuses {
			logger.Info("migration status",
				"version", s.Source.Version,
				"path", s.Source.Path,
				"state", s.State,
				"applied_at", s.AppliedAt)
		}

	case MigrateVersion:
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		logger.Info("current schema version", "version", version)

	default:
		return fmt.Errorf("unknown migration command %q", command)
	}

	return nil
}
