package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/polingest/internal/db"
	"github.com/vvka-141/polingest/internal/domain"
	"github.com/vvka-141/polingest/internal/logging"
	"github.com/vvka-141/polingest/internal/testinfra"
	"github.com/vvka-141/polingest/pkg/polingest"
)

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), polingest.StoreConfig{Driver: "mysql"}, logging.Discard)
	assert.ErrorIs(t, err, polingest.ErrInvalidConfig)

	_, err = Open(context.Background(), polingest.StoreConfig{Driver: polingest.DriverSQLite}, logging.Discard)
	assert.ErrorIs(t, err, polingest.ErrInvalidConfig)
}

func TestOpen_SQLiteAutoMigrate(t *testing.T) {
	ctx := context.Background()
	cfg := polingest.StoreConfig{
		Driver:      polingest.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "store.db"),
		AutoMigrate: true,
	}

	s, err := Open(ctx, cfg, logging.Discard)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))
	res, err := s.InsertAgents(ctx, []domain.Agent{{ID: uuid.New(), Name: "Alex"}})
	require.NoError(t, err)
	assert.Len(t, res.Created(), 1)
}

func TestOpen_SQLiteWithoutMigrations(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, polingest.StoreConfig{
		Driver:     polingest.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "bare.db"),
	}, logging.Discard)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.FindAgents(ctx, []string{"Alex"})
	assert.Error(t, err, "schema is absent without AutoMigrate")
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := polingest.StoreConfig{
		Driver:     polingest.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "m.db"),
	}

	applied, version, err := Migrate(ctx, cfg, logging.Discard)
	require.NoError(t, err)
	assert.NotEmpty(t, applied)
	assert.Equal(t, int64(2), version)

	applied, version, err = Migrate(ctx, cfg, logging.Discard)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Equal(t, int64(2), version)
}

func TestIntegration_OpenPostgres(t *testing.T) {
	connStr := testinfra.RequirePostgres(t)
	conn, err := db.ParseConnectionString(connStr)
	require.NoError(t, err)

	ctx := context.Background()
	s, err := Open(ctx, polingest.StoreConfig{
		Driver:      polingest.DriverPostgres,
		Connection:  conn,
		AutoMigrate: true,
	}, logging.Discard)
	require.NoError(t, err)
	defer s.Close()

	numbers, err := s.FindPolicyNumbers(ctx, []string{"P1"})
	require.NoError(t, err)
	assert.Empty(t, numbers)
}
