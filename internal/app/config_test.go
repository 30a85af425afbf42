package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 100, cfg.Database.Pool.MaxOpenConns)
	require.Equal(t, 14*24*time.Hour, cfg.Changes.TTL)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := `
server:
  port: 9001
  log_level: debug
database:
  driver: postgres
  postgres:
    host: db.internal
    port: 5433
    database: accounts
    username: accountd
    password: hunter2
changes:
  ttl: 24h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9001, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 24*time.Hour, cfg.Changes.TTL)

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, 5433, settings.Port)
	require.Equal(t, "accounts", settings.Name)
	require.Equal(t, "accountd", settings.User)
	require.Equal(t, "hunter2", settings.Password)
}

func TestDatabaseSettingsSQLite(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	settings := cfg.DatabaseSettings()
	require.Equal(t, "sqlite", settings.Driver)
	require.Empty(t, settings.Host)
	require.Equal(t, time.Hour, settings.ConnMaxLifetime)
}
