package db

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krt-cliente/contas/migrations"
)

func TestEmbeddedMigrationsCreateAccountsTable(t *testing.T) {
	entries, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	raw, err := fs.ReadFile(migrations.FS, entries[0])
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "-- +goose Up")
	assert.Contains(t, body, "CREATE TABLE IF NOT EXISTS accounts")
	assert.Contains(t, body, "deleted_at")
}

func TestMigrateFSRunsGooseAgainstRoot(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, migrateFS(context.Background(), nil, migrations.FS))
	assert.Equal(t, ".", gotDir)

	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		return errors.New("boom")
	}
	err := migrateFS(context.Background(), nil, migrations.FS)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform/db: migrate")
}
