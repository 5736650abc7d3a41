package retry

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vvka-141/polingest/pkg/polingest"
)

// See https://www.postgresql.org/docs/current/errcodes-appendix.html
var (
	// Connection exception, insufficient resources, operator intervention.
	transientPgClasses = []string{"08", "53", "57"}

	transientPgCodes = map[string]bool{
		"40001": true, // serialization_failure
		"40P01": true, // deadlock_detected
		"55P03": true, // lock_not_available
	}
)

var transientMessages = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"connection failure",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"broken pipe",
	"too many connections",
	"server closed the connection",
	"unexpected eof",
	"context deadline exceeded",
}

// PostgreSQLErrorClassifier treats connection, resource and lock errors as transient.
type PostgreSQLErrorClassifier struct{}

func NewPostgreSQLErrorClassifier() *PostgreSQLErrorClassifier {
	return &PostgreSQLErrorClassifier{}
}

func (c *PostgreSQLErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientPgCodes[pgErr.Code] {
			return true
		}
		for _, class := range transientPgClasses {
			if strings.HasPrefix(pgErr.Code, class) {
				return true
			}
		}
		return false
	}

	return isNetworkError(err) || hasTransientMessage(err)
}

// SQLiteErrorClassifier treats SQLITE_BUSY and SQLITE_LOCKED as transient:
// another connection or process holds the database file.
type SQLiteErrorClassifier struct{}

func NewSQLiteErrorClassifier() *SQLiteErrorClassifier {
	return &SQLiteErrorClassifier{}
}

func (c *SQLiteErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		// Extended result codes carry the primary code in the low byte.
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// ForDriver returns the classifier matching a store driver.
func ForDriver(d polingest.Driver) polingest.ErrorClassifier {
	if d == polingest.DriverSQLite {
		return NewSQLiteErrorClassifier()
	}
	return NewPostgreSQLErrorClassifier()
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH)
	}
	return false
}

func hasTransientMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range transientMessages {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
