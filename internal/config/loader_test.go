package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/engcrm/internal/db"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.SmartLists.PreviewLimit)
	assert.Equal(t, 4, cfg.SmartLists.RefreshConcurrency)
	assert.Equal(t, db.DefaultConfig(), cfg.Database)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  addr: ":9090"
database:
  host: db.internal
  port: 6543
smartlists:
  preview_limit: 25
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))
	t.Setenv("ENGCRM_DATABASE_HOST", "override.internal")
	t.Setenv("ENGCRM_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 25, cfg.SmartLists.PreviewLimit)

	dbCfg, err := LoadDBConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Database, dbCfg)
}

func TestLoadRejectsInvalidLimits(t *testing.T) {
	t.Setenv("ENGCRM_SMARTLISTS_REFRESH_CONCURRENCY", "0")
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "refresh_concurrency")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o600))
	_, err := Load(dir)
	assert.Error(t, err)
}
