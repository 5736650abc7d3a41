// Package store defines the persistence contract an ingestion run needs and
// opens the configured backend.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/vvka-141/polingest/internal/db"
	"github.com/vvka-141/polingest/internal/domain"
	"github.com/vvka-141/polingest/internal/migrations"
	"github.com/vvka-141/polingest/internal/retry"
	"github.com/vvka-141/polingest/internal/store/postgres"
	"github.com/vvka-141/polingest/internal/store/sqlite"
	"github.com/vvka-141/polingest/pkg/polingest"
)

// Store is the set of bulk operations the pipeline issues.
//
// Find* return only the records that exist; keys with no match are simply
// absent. Insert* never fail on a natural-key collision: such items come back
// with domain.OutcomeDuplicate and are not written.
type Store interface {
	FindAgents(ctx context.Context, names []string) ([]domain.Agent, error)
	FindCategories(ctx context.Context, names []string) ([]domain.Category, error)
	FindCarriers(ctx context.Context, names []string) ([]domain.Carrier, error)
	FindUsers(ctx context.Context, emails []string) ([]domain.User, error)
	FindAccounts(ctx context.Context, userIDs []uuid.UUID) ([]domain.Account, error)
	FindPolicyNumbers(ctx context.Context, numbers []string) ([]string, error)

	InsertAgents(ctx context.Context, items []domain.Agent) (domain.InsertResult[domain.Agent], error)
	InsertCategories(ctx context.Context, items []domain.Category) (domain.InsertResult[domain.Category], error)
	InsertCarriers(ctx context.Context, items []domain.Carrier) (domain.InsertResult[domain.Carrier], error)
	InsertUsers(ctx context.Context, items []domain.User) (domain.InsertResult[domain.User], error)
	InsertAccounts(ctx context.Context, items []domain.Account) (domain.InsertResult[domain.Account], error)
	InsertPolicies(ctx context.Context, items []domain.Policy) (domain.InsertResult[domain.Policy], error)

	// FindUserByFirstName returns the first user, by first name then email,
	// whose first name contains firstName ignoring case; nil when none does.
	FindUserByFirstName(ctx context.Context, firstName string) (*domain.User, error)
	// PoliciesForUser lists one user's policies, newest start date first.
	PoliciesForUser(ctx context.Context, userID uuid.UUID) ([]domain.PolicyView, error)
	// AggregatedPolicies groups every policy by its user, most policies first.
	AggregatedPolicies(ctx context.Context) ([]domain.UserPolicies, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*postgres.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Open validates cfg, opens the backend it names and, when cfg.AutoMigrate
// is set, brings the schema up to date.
func Open(ctx context.Context, cfg polingest.StoreConfig, logger polingest.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case polingest.DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	case polingest.DriverSQLite:
		return openSQLite(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown driver %q: %w", cfg.Driver, polingest.ErrInvalidConfig)
	}
}

func openPostgres(ctx context.Context, cfg polingest.StoreConfig, logger polingest.Logger) (Store, error) {
	connector, err := db.NewConnector(cfg.Connection, logger)
	if err != nil {
		return nil, err
	}
	pool, err := connector.Connect(ctx)
	if err != nil {
		_ = db.CloseConnector(connector)
		return nil, err
	}
	s := postgres.New(pool, func() error { return db.CloseConnector(connector) })
	logger.Verbose("Connected to PostgreSQL %s:%d/%s", cfg.Connection.Host, cfg.Connection.Port, cfg.Connection.Database)

	if cfg.AutoMigrate {
		if _, err := migrate(ctx, s, logger); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func openSQLite(ctx context.Context, cfg polingest.StoreConfig, logger polingest.Logger) (Store, error) {
	executor := retry.NewExecutor(
		retry.ForDriver(polingest.DriverSQLite),
		retry.NewExponentialBackoff(polingest.DefaultRetryMaxAttempts,
			retry.WithInitialDelay(polingest.DefaultRetryInitialDelay),
			retry.WithMaxDelay(polingest.DefaultRetryMaxDelay)),
	).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Verbose("Opening %s failed (attempt %d): %v; retrying in %v", cfg.SQLitePath, attempt+1, err, delay)
	})

	s, err := retry.Value(ctx, executor, func(ctx context.Context) (*sqlite.Store, error) {
		return sqlite.Open(ctx, cfg.SQLitePath)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", polingest.ErrConnectionFailed, err)
	}
	logger.Verbose("Opened SQLite database %s", cfg.SQLitePath)

	if cfg.AutoMigrate {
		if _, err := migrate(ctx, s, logger); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate opens the store described by cfg, applies pending migrations and
// returns them along with the resulting schema version.
func Migrate(ctx context.Context, cfg polingest.StoreConfig, logger polingest.Logger) ([]migrations.Applied, int64, error) {
	cfg.AutoMigrate = false
	s, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, 0, err
	}
	defer s.Close()

	applied, err := migrate(ctx, s, logger)
	if err != nil {
		return nil, 0, err
	}

	var version int64
	err = withSQL(s, func(sqlDB *sql.DB, driver polingest.Driver) error {
		version, err = migrations.Version(ctx, sqlDB, driver)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", polingest.ErrStore, err)
	}
	return applied, version, nil
}

func migrate(ctx context.Context, s Store, logger polingest.Logger) ([]migrations.Applied, error) {
	var applied []migrations.Applied
	err := withSQL(s, func(sqlDB *sql.DB, driver polingest.Driver) error {
		var err error
		applied, err = migrations.Up(ctx, sqlDB, driver)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", polingest.ErrStore, err)
	}
	for _, a := range applied {
		logger.Info("Applied migration %d (%s)", a.Version, a.Path)
	}
	return applied, nil
}

// withSQL hands fn a database/sql view of the backend's connection.
func withSQL(s Store, fn func(*sql.DB, polingest.Driver) error) error {
	switch b := s.(type) {
	case *postgres.Store:
		sqlDB := stdlib.OpenDBFromPool(b.Pool())
		// Closing the wrapper leaves the pool open.
		defer sqlDB.Close()
		return fn(sqlDB, polingest.DriverPostgres)
	case *sqlite.Store:
		return fn(b.DB(), polingest.DriverSQLite)
	default:
		return fmt.Errorf("store %T has no SQL handle: %w", s, polingest.ErrInvalidConfig)
	}
}
