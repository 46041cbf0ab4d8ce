package db

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "host=localhost port=5432 user=postgres password=admin dbname=engcrm sslmode=disable", cfg.DSN())
}

func TestConfigMigrationURLEscapesCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "p@ss/word"

	parsed, err := url.Parse(cfg.MigrationURL())
	require.NoError(t, err)
	assert.Equal(t, "pgx5", parsed.Scheme)
	assert.Equal(t, "localhost:5432", parsed.Host)
	assert.Equal(t, "/engcrm", parsed.Path)
	assert.Equal(t, "disable", parsed.Query().Get("sslmode"))

	password, ok := parsed.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss/word", password)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
