package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workqueue/internal/config"
	"github.com/phrazzld/workqueue/internal/platform/postgres"
	"github.com/phrazzld/workqueue/internal/security"
	"github.com/phrazzld/workqueue/internal/work"
	"github.com/pressly/goose/v3"
)

// ServeCmd runs the work queue service.
type ServeCmd struct{}

// Run executes the serve command.
func (cmd ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := loadAppConfig(g.Config)
	if err != nil {
		return err
	}
	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.cleanup()

	return app.Run(ctx)
}

// MigrateCmd applies or inspects the PostgreSQL schema.
type MigrateCmd struct {
	Command string `kong:"optional,name='command',enum='up,down,status,version',default='up',help='Migration command: up, down, status or version.'"`
}

// Run executes the migrate command.
func (cmd MigrateCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := loadAppConfig(g.Config)
	if err != nil {
		return err
	}
	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return postgres.Migrate(ctx, db, goose.DialectPostgres, cmd.Command, logger)
}

// PendingCmd prints the envelopes left in the configured store.
type PendingCmd struct{}

// Run executes the pending command.
func (cmd PendingCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := loadAppConfig(g.Config)
	if err != nil {
		return err
	}
	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	s, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	return printPending(ctx, os.Stdout, s)
}

// printPending writes the records of s to w as a JSON array in replay order.
func printPending(ctx context.Context, w io.Writer, s work.Store) error {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return err
	}
	work.SortRecords(records)
	if records == nil {
		records = []work.Record{}
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// PurgeCmd deletes every persisted envelope of one task type.
type PurgeCmd struct {
	Type string `kong:"required,name='type',help='Task type whose envelopes are deleted.'"`
}

// Run executes the purge command.
func (cmd PurgeCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := loadAppConfig(g.Config)
	if err != nil {
		return err
	}
	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	s, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ids, err := purge(ctx, s, cmd.Type)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

// purger is implemented by the stores that outlive the process.
type purger interface {
	Purge(ctx context.Context, taskType string) ([]uuid.UUID, error)
}

func purge(ctx context.Context, s work.Store, taskType string) ([]uuid.UUID, error) {
	p, ok := s.(purger)
	if !ok {
		return nil, fmt.Errorf("store %T does not support purge", s)
	}
	return p.Purge(ctx, taskType)
}

// TokenCmd issues a signed API token.
type TokenCmd struct {
	Subject  string        `kong:"arg,required,help='Name of the subject the token is issued for.'"`
	Roles    []string      `kong:"optional,name='role',short='r',help='Role granted to the subject. May be repeated.'"`
	Lifetime time.Duration `kong:"optional,name='lifetime',help='Token lifetime. Defaults to auth.token_lifetime_minutes.'"`
}

// Run executes the token command.
func (cmd TokenCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := loadAppConfig(g.Config)
	if err != nil {
		return err
	}

	token, err := issueToken(ctx, cfg, cmd.Subject, cmd.Roles, cmd.Lifetime)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func issueToken(ctx context.Context, cfg *config.Config, name string, roles []string, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.Auth.TokenLifetimeMinutes) * time.Minute
	}
	tokens, err := security.NewTokenService(cfg.Auth.JWTSecret, lifetime)
	if err != nil {
		return "", err
	}
	return tokens.GenerateToken(ctx, security.NewSubject(name, roles...))
}
