package postgres

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	logger := testLogger()

	require.NoError(t, Migrate(ctx, db, goose.DialectSQLite3, MigrateUp, logger))
	assert.True(t, tableExists(t, db, "work_envelopes"))

	require.NoError(t, Migrate(ctx, db, goose.DialectSQLite3, MigrateUp, logger), "up is idempotent")
	require.NoError(t, Migrate(ctx, db, goose.DialectSQLite3, MigrateStatus, logger))

	provider, err := NewMigrationProvider(db, goose.DialectSQLite3)
	require.NoError(t, err)
	version, err := provider.GetDBVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	require.NoError(t, Migrate(ctx, db, goose.DialectSQLite3, MigrateVersion, logger))

	require.NoError(t, Migrate(ctx, db, goose.DialectSQLite3, MigrateDown, logger))
	assert.False(t, tableExists(t, db, "work_envelopes"))

	err = Migrate(ctx, db, goose.DialectSQLite3, "sideways", logger)
	assert.ErrorContains(t, err, "unknown migration command")
}
