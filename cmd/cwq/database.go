package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/workqueue/internal/config"
	"github.com/phrazzld/workqueue/internal/platform/filestore"
	"github.com/phrazzld/workqueue/internal/platform/postgres"
	"github.com/phrazzld/workqueue/internal/redact"
	"github.com/phrazzld/workqueue/internal/work"
	"github.com/pressly/goose/v3"
)

// errNoDatabase is returned by commands that need PostgreSQL when no
// database URL is configured.
var errNoDatabase = errors.New("database.url is not configured")

// openDatabase establishes a connection to PostgreSQL and configures the
// connection pool.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errNoDatabase
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %s", redact.String(cfg.Database.URL), redact.Error(err))
	}

	logger.Info("database connection established", "url", redact.String(cfg.Database.URL))
	return db, nil
}

// openStore opens the envelope store selected by queue.store. The returned
// database is nil unless the PostgreSQL store is used; the caller closes it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (work.Store, *sql.DB, error) {
	switch cfg.Queue.Store {
	case config.StorePostgres:
		db, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db, goose.DialectPostgres, postgres.MigrateUp, logger); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.NewEnvelopeStore(db), db, nil

	case config.StoreFile:
		s, err := filestore.New(cfg.Queue.FilePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	case config.StoreMemory:
		logger.Warn("using the in-memory store; pending tasks will not survive a restart")
		return work.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Queue.Store)
	}
}
