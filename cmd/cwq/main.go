// Package main implements cwq, the central work queue service and its
// operator commands.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config string `kong:"optional,name='config',short='c',type='path',help='Path to a YAML configuration file. Defaults to ./config.yaml when present.'"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli struct {
		Globals

		Serve   ServeCmd   `kong:"cmd,help='Runs the work queue and its HTTP API.'"`
		Migrate MigrateCmd `kong:"cmd,help='Manages the database schema of the PostgreSQL store.'"`
		Pending PendingCmd `kong:"cmd,help='Prints the persisted envelopes that have not finished.'"`
		Purge   PurgeCmd   `kong:"cmd,help='Deletes the persisted envelopes of a retired task type.'"`
		Token   TokenCmd   `kong:"cmd,help='Issues an API token for a subject.'"`
	}

	parser := kong.Must(&cli,
		kong.Name("cwq"),
		kong.Description("Central work queue: lock-coordinated, persistent background tasks."),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&cli.Globals),
		kong.UsageOnError())

	app, parseErr := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(parseErr)

	appErr := app.Run()
	app.FatalIfErrorf(appErr)
}
