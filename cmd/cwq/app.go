package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/workqueue/internal/api"
	"github.com/phrazzld/workqueue/internal/config"
	"github.com/phrazzld/workqueue/internal/search"
	"github.com/phrazzld/workqueue/internal/security"
	"github.com/phrazzld/workqueue/internal/tasks"
	"github.com/phrazzld/workqueue/internal/work"
)

// application holds the shared dependencies of the server and ensures they
// are released on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	store    work.Store
	registry *work.Registry
	queue    *work.Queue
	tokens   security.TokenService
}

// newApplication wires the store, the task registry, the task dependencies
// and the queue. Nothing runs until Run.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.tokens, err = security.NewTokenService(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenLifetimeMinutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	app.store, app.db, err = openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	app.registry = work.NewRegistry()
	tasks.Register(app.registry)

	deps := work.NewDependencies()
	work.Provide(deps, search.NewIndexer(search.NewDirSource(cfg.Search.Root), logger))

	app.queue, err = work.NewQueue(
		app.store,
		app.registry,
		work.QueueConfig{Workers: cfg.Queue.Workers},
		logger,
		work.WithDependencies(deps),
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create work queue: %w", err)
	}

	logger.Info("application initialized",
		"task_types", app.registry.Names(),
		"search_root", cfg.Search.Root)
	return app, nil
}

// Run starts the queue, which replays persisted envelopes, and serves HTTP
// until ctx is cancelled or the server fails. The queue is closed before
// Run returns.
func (app *application) Run(ctx context.Context) error {
	if err := app.queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start work queue: %w", err)
	}

	router := api.NewRouter(app.queue, app.registry, app.tokens, app.logger)
	serveErr := app.startHTTPServer(ctx, router)

	closeCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout())
	defer cancel()
	closeErr := app.queue.Close(closeCtx)
	if closeErr != nil {
		app.logger.Error("work queue did not drain before the shutdown timeout",
			"error", closeErr, "size", app.queue.Size())
	}

	return errors.Join(serveErr, closeErr)
}

// startHTTPServer serves router until ctx is done, then shuts the server
// down gracefully.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("server shutdown completed")
	return nil
}

const defaultShutdownTimeout = 30 * time.Second

func (app *application) shutdownTimeout() time.Duration {
	if app.config.Server.ShutdownTimeoutSeconds <= 0 {
		return defaultShutdownTimeout
	}
	return time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
}

// cleanup releases resources acquired by newApplication.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
