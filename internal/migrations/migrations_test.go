package migrations

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vvka-141/polingest/pkg/polingest"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUp_SQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	applied, err := Up(ctx, db, polingest.DriverSQLite)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, int64(1), applied[0].Version)
	assert.Equal(t, int64(2), applied[1].Version)

	v, err := Version(ctx, db, polingest.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	again, err := Up(ctx, db, polingest.DriverSQLite)
	require.NoError(t, err)
	assert.Empty(t, again)

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM policy_infos`).Scan(&n))
	assert.Zero(t, n)
}

func TestUp_UnknownDriver(t *testing.T) {
	_, err := Up(context.Background(), openSQLite(t), polingest.Driver("oracle"))
	assert.True(t, errors.Is(err, polingest.ErrInvalidConfig))
}

func TestEmbeddedDialectsMatch(t *testing.T) {
	pg, err := embedded.ReadDir("postgres")
	require.NoError(t, err)
	lite, err := embedded.ReadDir("sqlite")
	require.NoError(t, err)

	require.Equal(t, len(pg), len(lite))
	for i := range pg {
		assert.Equal(t, pg[i].Name(), lite[i].Name())
	}
}
