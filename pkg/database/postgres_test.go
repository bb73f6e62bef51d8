package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{Host: "db", Port: 5432, User: "worklog", Password: "secret", Database: "worklog", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=worklog password=secret dbname=worklog sslmode=disable", cfg.DSN())
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)

	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	assert.Equal(t, up, down, "every migration needs a down step")
	assert.Positive(t, up)

	schema, err := fs.ReadFile(migrationFiles, "migrations/000001_create_worklog_schema.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"worklog_records", "worklog_documents", "cost_ledger", "rate_config"} {
		assert.Contains(t, string(schema), "CREATE TABLE IF NOT EXISTS "+table)
	}
}
