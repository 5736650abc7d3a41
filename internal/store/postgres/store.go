// Package postgres is the PostgreSQL store backend, built on pgx.
//
// Lookups bind the whole key set as one array parameter (= ANY($1)) and bulk
// inserts unnest parallel arrays, so each operation is a single round trip
// regardless of batch size.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements the ingestion store over a pgx pool.
type Store struct {
	pool    *pgxpool.Pool
	onClose func() error
}

// New wraps pool. onClose, if non-nil, runs after the pool is closed
// (e.g. to release a Cloud SQL dialer).
func New(pool *pgxpool.Pool, onClose func() error) *Store {
	return &Store{pool: pool, onClose: onClose}
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	if s.onClose != nil {
		return s.onClose()
	}
	return nil
}

type named struct {
	ID   uuid.UUID
	Name string
}

func (s *Store) findNamed(ctx context.Context, table, column string, names []string) ([]named, error) {
	q := fmt.Sprintf(`SELECT id, %s FROM %s WHERE %s = ANY($1)`, column, table, column)
	rows, err := s.pool.Query(ctx, q, names)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[named])
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	return out, nil
}

// column is a target column and the array type its parameter is cast to.
type column struct {
	name, arrayType string
}

// insertUnnest writes n rows given as one parallel array per column with
// INSERT ... SELECT FROM unnest(...) ON CONFLICT DO NOTHING, and returns
// the IDs actually written. The id column must come first.
func (s *Store) insertUnnest(ctx context.Context, table string, n int, columns []column, arrays ...any) (map[uuid.UUID]bool, error) {
	created := make(map[uuid.UUID]bool, n)
	if n == 0 {
		return created, nil
	}

	names := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
		params[i] = fmt.Sprintf("$%d::%s", i+1, c.arrayType)
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) SELECT * FROM unnest(%s) ON CONFLICT DO NOTHING RETURNING id`,
		table, strings.Join(names, ", "), strings.Join(params, ", "))

	rows, err := s.pool.Query(ctx, q, arrays...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	for _, id := range ids {
		created[id] = true
	}
	return created, nil
}

// date converts an optional time to a date parameter; nil is NULL.
func date(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}
