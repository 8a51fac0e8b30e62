package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("POSTGRES_CONN", "postgres://u:p@localhost/etender?sslmode=disable")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("SWEEP_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, EnvLocal, cfg.Env)
	require.Equal(t, "0.0.0.0:8080", cfg.HTTP.Address)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 5*time.Second, cfg.Sweep.Interval)
	require.Equal(t, 72*time.Hour, cfg.Sweep.ReminderLead)
	require.Equal(t, 24*time.Hour, cfg.Auth.TTL)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: dev
http:
  address: 127.0.0.1:9090
database:
  driver: sqlite3
  dsn: file:etender.db
auth:
  jwt_secret: file-secret-0123456789
sweep:
  reminder_lead: 24h
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:7070")
	t.Setenv("POSTGRES_CONN", "file:etender.db")
	t.Setenv("JWT_SECRET", "env-secret-0123456789")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, EnvDev, cfg.Env)
	require.Equal(t, "127.0.0.1:7070", cfg.HTTP.Address)
	require.Equal(t, "sqlite3", cfg.Database.Driver)
	require.Equal(t, 24*time.Hour, cfg.Sweep.ReminderLead)
	require.Equal(t, 30*time.Second, cfg.Sweep.Interval)
	require.Equal(t, "env-secret-0123456789", cfg.Auth.Secret)
}

func TestLoad_Rejects(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("POSTGRES_CONN", "postgres://localhost/etender")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("DB_DRIVER", "mysql")
	_, err = Load()
	require.Error(t, err)
}
