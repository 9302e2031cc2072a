package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644))
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "002_add_index.sql", "CREATE INDEX idx_a ON a(name);")
	writeMigration(t, dir, "001_create_a.sql", "CREATE TABLE a (name TEXT);")
	writeMigration(t, dir, "README.md", "ignored")

	migrations, err := LoadMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "create_a", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)

	writeMigration(t, dir, "002_duplicate.sql", "SELECT 1;")
	_, err = LoadMigrations(dir)
	assert.ErrorContains(t, err, "duplicate migration version 2")
}

func TestRunMigrations_Idempotent(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "m.db")}, logger)
	require.NoError(t, err)
	defer db.Close()

	migrator := NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations("../../migrations/sqlite"))
	require.NoError(t, migrator.RunMigrations("../../migrations/sqlite"))

	applied, err := migrator.AppliedVersions()
	require.NoError(t, err)
	assert.True(t, applied[1])

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM requests`).Scan(&count))
	assert.Zero(t, count)
}

func TestNew_RejectsUnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "postgres"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestDataSourceName_MySQL(t *testing.T) {
	dsn, err := dataSourceName(DriverMySQL, Config{DSN: "app:secret@tcp(localhost:3306)/approvals"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=true")
}
