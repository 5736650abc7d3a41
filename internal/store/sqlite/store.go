// Package sqlite is the embedded store backend, built on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// maxRowsPerStatement keeps every statement well under SQLite's bound
// parameter limit; the widest table binds 13 values per row.
const maxRowsPerStatement = 500

const dateLayout = "2006-01-02"

// Store implements the ingestion store over a single SQLite file.
type Store struct {
	db *sql.DB
}

// DSN builds a modernc.org/sqlite data source name for path with foreign keys
// enforced, WAL journaling and a busy timeout.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: writes serialize in-process instead of contending for the file lock.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

type named struct {
	ID   uuid.UUID
	Name string
}

func (s *Store) findNamed(ctx context.Context, table, column string, names []string) ([]named, error) {
	var out []named
	for _, part := range chunk(names, maxRowsPerStatement) {
		q := fmt.Sprintf(`SELECT id, %s FROM %s WHERE %s IN (%s)`, column, table, column, placeholders(len(part), 1))
		rows, err := s.db.QueryContext(ctx, q, anySlice(part)...)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", table, err)
		}
		for rows.Next() {
			var n named
			if err := rows.Scan(&n.ID, &n.Name); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s: %w", table, err)
			}
			out = append(out, n)
		}
		if err := closeRows(rows); err != nil {
			return nil, fmt.Errorf("find %s: %w", table, err)
		}
	}
	return out, nil
}

// insertReturning inserts rows of len(columns) values each, skipping rows
// that violate a uniqueness constraint, and returns the IDs actually written.
// The id column must come first.
func (s *Store) insertReturning(ctx context.Context, table string, columns []string, values [][]any) (map[uuid.UUID]bool, error) {
	created := make(map[uuid.UUID]bool, len(values))
	for _, part := range chunk(values, maxRowsPerStatement) {
		args := make([]any, 0, len(part)*len(columns))
		for _, v := range part {
			args = append(args, v...)
		}
		q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s ON CONFLICT DO NOTHING RETURNING id`,
			table, strings.Join(columns, ", "), placeholders(len(part), len(columns)))

		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s id: %w", table, err)
			}
			created[id] = true
		}
		if err := closeRows(rows); err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return created, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

// placeholders renders n groups of width "?" markers: "(?, ?), (?, ?)" for
// width 2, or "?, ?" for width 1.
func placeholders(n, width int) string {
	group := strings.TrimSuffix(strings.Repeat("?, ", width), ", ")
	if width > 1 {
		group = "(" + group + ")"
	}
	groups := make([]string, n)
	for i := range groups {
		groups[i] = group
	}
	return strings.Join(groups, ", ")
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
