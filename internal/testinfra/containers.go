// Package testinfra starts the PostgreSQL instance used by integration tests.
package testinfra

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "postgres"

	// ConnEnvVar points the integration tests at an existing server instead of a container.
	ConnEnvVar = "POLINGEST_TEST_CONN"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
}

func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr}, nil
}

var (
	serverOnce sync.Once
	serverConn string
	serverErr  error
)

// serverConnString returns the shared server: POLINGEST_TEST_CONN if set,
// else a container started once per test binary.
func serverConnString() (string, error) {
	if conn := os.Getenv(ConnEnvVar); conn != "" {
		return conn, nil
	}
	serverOnce.Do(func() {
		ctr, err := StartPostgres(context.Background())
		if err != nil {
			serverErr = err
			return
		}
		serverConn = ctr.ConnString
	})
	return serverConn, serverErr
}

// RequirePostgres creates an empty database for the calling test and returns
// its connection string. The test is skipped in -short mode or when neither
// POLINGEST_TEST_CONN nor Docker is available. The database is dropped on cleanup.
func RequirePostgres(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	base, err := serverConnString()
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", ConnEnvVar, err)
	}

	ctx := context.Background()
	admin, err := pgx.Connect(ctx, base)
	if err != nil {
		t.Skipf("cannot reach test server: %v", err)
	}
	defer admin.Close(ctx)

	name := "polingest_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := admin.Exec(ctx, "CREATE DATABASE "+name); err != nil {
		t.Fatalf("create test database: %v", err)
	}

	t.Cleanup(func() {
		conn, err := pgx.Connect(context.Background(), base)
		if err != nil {
			return
		}
		defer conn.Close(context.Background())
		conn.Exec(context.Background(), "DROP DATABASE IF EXISTS "+name+" WITH (FORCE)") //nolint:errcheck
	})

	cfg, err := pgx.ParseConfig(base)
	if err != nil {
		t.Fatalf("parse test connection string: %v", err)
	}
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
