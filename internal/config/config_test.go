package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))
	return dir
}

func TestLoad_AllSections(t *testing.T) {
	dir := writeConfig(t, `connection:
  host: myhost
  port: 5433
  username: myuser
  database: policies
  sslmode: require
  auth_method: aws
  aws_region: eu-west-1

store:
  driver: sqlite
  sqlite_path: /var/lib/polingest/data.db
  auto_migrate: false

server:
  addr: ":8080"
  upload_dir: /tmp/uploads
  max_upload_mb: 10
  workers: 4
  metrics_path: /internal/metrics
  cors_origins:
    - https://app.example.com
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "myhost", cfg.Connection.Host)
	assert.Equal(t, 5433, cfg.Connection.Port)
	assert.Equal(t, "myuser", cfg.Connection.Username)
	assert.Equal(t, "policies", cfg.Connection.Database)
	assert.Equal(t, "require", cfg.Connection.SSLMode)
	assert.Equal(t, "aws", cfg.Connection.AuthMethod)
	assert.Equal(t, "eu-west-1", cfg.Connection.AWSRegion)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/polingest/data.db", cfg.Store.SQLitePath)
	require.NotNil(t, cfg.Store.AutoMigrate)
	assert.False(t, *cfg.Store.AutoMigrate)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Server.Workers)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := writeConfig(t, "connection: [unclosed")
	_, err := Load(dir)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoadOptional_Missing(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Connection.Host)
}
