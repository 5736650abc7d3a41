package retry

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/polingest/pkg/polingest"
)

func TestPostgreSQLErrorClassifier_IsTransient(t *testing.T) {
	c := NewPostgreSQLErrorClassifier()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection failure 08006", &pgconn.PgError{Code: "08006"}, true},
		{"too many connections 53300", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown 57P01", &pgconn.PgError{Code: "57P01"}, true},
		{"serialization 40001", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock 40P01", &pgconn.PgError{Code: "40P01"}, true},
		{"lock not available 55P03", &pgconn.PgError{Code: "55P03"}, true},
		{"unique violation 23505", &pgconn.PgError{Code: "23505"}, false},
		{"undefined table 42P01", &pgconn.PgError{Code: "42P01"}, false},
		{"wrapped pg error", fmt.Errorf("find agents: %w", &pgconn.PgError{Code: "08001"}), true},
		{"conn refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"dns temporary", &net.DNSError{IsTemporary: true}, true},
		{"dns permanent", &net.DNSError{IsNotFound: true}, false},
		{"message pattern", errors.New("read: connection reset by peer"), true},
		{"unrelated", errors.New("password authentication failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSQLiteErrorClassifier_IsTransient(t *testing.T) {
	c := NewSQLiteErrorClassifier()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"locked message", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"table locked message", errors.New("database table is locked"), true},
		{"constraint", errors.New("UNIQUE constraint failed: agents.name"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestForDriver(t *testing.T) {
	if _, ok := ForDriver(polingest.DriverSQLite).(*SQLiteErrorClassifier); !ok {
		t.Error("sqlite driver should use SQLiteErrorClassifier")
	}
	if _, ok := ForDriver(polingest.DriverPostgres).(*PostgreSQLErrorClassifier); !ok {
		t.Error("postgres driver should use PostgreSQLErrorClassifier")
	}
}
