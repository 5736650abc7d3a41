// Package migrations applies the store schema with goose. Each dialect has its
// own embedded set of SQL migrations with the same version numbers.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/vvka-141/polingest/pkg/polingest"
)

//go:embed postgres/*.sql sqlite/*.sql
var embedded embed.FS

// Applied describes one migration that ran.
type Applied struct {
	Version int64
	Path    string
}

func provider(db *sql.DB, driver polingest.Driver) (*goose.Provider, error) {
	var dialect goose.Dialect
	switch driver {
	case polingest.DriverPostgres:
		dialect = goose.DialectPostgres
	case polingest.DriverSQLite:
		dialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("no migrations for driver %q: %w", driver, polingest.ErrInvalidConfig)
	}

	fsys, err := fs.Sub(embedded, string(driver))
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(dialect, db, fsys)
}

// Up applies every pending migration and returns those that ran.
func Up(ctx context.Context, db *sql.DB, driver polingest.Driver) ([]Applied, error) {
	p, err := provider(db, driver)
	if err != nil {
		return nil, err
	}

	results, err := p.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply %s migrations: %w", driver, err)
	}

	applied := make([]Applied, 0, len(results))
	for _, r := range results {
		applied = append(applied, Applied{Version: r.Source.Version, Path: r.Source.Path})
	}
	return applied, nil
}

// Version returns the highest applied migration version, 0 for an empty database.
func Version(ctx context.Context, db *sql.DB, driver polingest.Driver) (int64, error) {
	p, err := provider(db, driver)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}
