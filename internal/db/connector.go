package db

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/polingest/internal/retry"
	"github.com/vvka-141/polingest/pkg/polingest"
)

const (
	// DefaultMaxConns covers one run's four concurrent lookups or inserts
	// for two concurrent runs.
	DefaultMaxConns = 8

	DefaultMinConns = 1

	DefaultMaxConnIdleTime = 10 * time.Minute
)

func configurePool(poolConfig *pgxpool.Config, logger polingest.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("postgres %s: %s", strings.ToLower(notice.Severity), notice.Message)
	}
}

// passwordFunc yields the password for the next connection attempt.
// Token-based providers return a fresh token each time.
type passwordFunc func(ctx context.Context) (string, error)

// PoolConnector opens a pgx pool with retry on transient failures.
// The password comes either from the configuration or from a TokenProvider.
type PoolConnector struct {
	config   *polingest.ConnectionConfig
	password passwordFunc
	executor *retry.Executor
	logger   polingest.Logger
}

func newPoolConnector(config *polingest.ConnectionConfig, password passwordFunc, logger polingest.Logger) *PoolConnector {
	strategy := retry.NewExponentialBackoff(polingest.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(polingest.DefaultRetryInitialDelay),
		retry.WithMaxDelay(polingest.DefaultRetryMaxDelay),
	)
	executor := retry.NewExecutor(retry.NewPostgreSQLErrorClassifier(), strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Verbose("connect attempt %d failed, retrying in %v: %v", attempt+1, delay.Round(time.Millisecond), err)
		})

	return &PoolConnector{config: config, password: password, executor: executor, logger: logger}
}

// NewStandardConnector uses the password from config.
func NewStandardConnector(config *polingest.ConnectionConfig, logger polingest.Logger) *PoolConnector {
	static := func(context.Context) (string, error) { return config.Password, nil }
	return newPoolConnector(config, static, logger)
}

// NewTokenConnector uses a short-lived token from provider as the password.
func NewTokenConnector(config *polingest.ConnectionConfig, provider TokenProvider, logger polingest.Logger) *PoolConnector {
	token := func(ctx context.Context) (string, error) {
		tok, expiresOn, err := provider.GetToken(ctx)
		if err != nil {
			return "", fmt.Errorf("acquire token from %s: %w", provider, err)
		}
		if left := time.Until(expiresOn); left < 5*time.Minute {
			logger.Info("Warning: %s token expires in %v", provider, left.Round(time.Second))
		}
		return tok, nil
	}
	return newPoolConnector(config, token, logger)
}

// Connect opens the pool and pings it.
func (c *PoolConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return retry.Value(ctx, c.executor, func(ctx context.Context) (*pgxpool.Pool, error) {
		password, err := c.password(ctx)
		if err != nil {
			return nil, err
		}

		cfg := *c.config
		cfg.Password = password

		poolConfig, err := pgxpool.ParseConfig(BuildConnectionString(&cfg))
		if err != nil {
			return nil, fmt.Errorf("parse connection config: %w: %w", polingest.ErrInvalidConfig, err)
		}
		configurePool(poolConfig, c.logger)

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, wrapConnectionError(err, c.config)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, wrapConnectionError(err, c.config)
		}
		return pool, nil
	})
}

// NewConnector picks the connector for config.AuthMethod.
// Connectors that hold resources beyond the pool implement io.Closer.
func NewConnector(config *polingest.ConnectionConfig, logger polingest.Logger) (polingest.Connector, error) {
	switch config.AuthMethod {
	case polingest.AuthMethodStandard:
		return NewStandardConnector(config, logger), nil

	case polingest.AuthMethodAWSIAM:
		provider, err := NewAWSIAMTokenProvider(fmt.Sprintf("%s:%d", config.Host, config.Port), config.AWSRegion, config.Username)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", polingest.ErrInvalidConfig, err)
		}
		return NewTokenConnector(config, provider, logger), nil

	case polingest.AuthMethodAzureEntraID:
		provider, err := newAzureProvider(config)
		if err != nil {
			return nil, err
		}
		return NewTokenConnector(config, provider, logger), nil

	case polingest.AuthMethodGoogleIAM:
		if config.GoogleInstance == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", polingest.ErrInvalidConfig)
		}
		if config.Username == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires a username: %w", polingest.ErrInvalidConfig)
		}
		return NewGoogleCloudSQLConnector(config, logger), nil

	default:
		return nil, fmt.Errorf("auth method %v: %w", config.AuthMethod, polingest.ErrUnsupportedAuthMethod)
	}
}

// CloseConnector releases connector resources, if it holds any.
func CloseConnector(c polingest.Connector) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// wrapConnectionError adds a hint for the common failures and marks the
// error as ErrConnectionFailed. The original error stays in the chain so the
// retry classifier can still inspect it.
func wrapConnectionError(err error, cfg *polingest.ConnectionConfig) error {
	msg := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var hint string
	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "actively refused"):
		hint = fmt.Sprintf("connection refused by %s; is PostgreSQL running? (pg_isready -h %s -p %d)", addr, cfg.Host, cfg.Port)
	case strings.Contains(msg, "no such host"):
		hint = fmt.Sprintf("cannot resolve host %q", cfg.Host)
	case strings.Contains(msg, "password authentication failed"):
		hint = fmt.Sprintf("password authentication failed for user %q; check $PGPASSWORD or the connection string", cfg.Username)
	case strings.Contains(msg, "does not exist"):
		hint = fmt.Sprintf("database %q does not exist; create it (createdb %s) then run `polingest migrate`", cfg.Database, cfg.Database)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		hint = fmt.Sprintf("connection to %s timed out", addr)
	case strings.Contains(msg, "ssl") || strings.Contains(msg, "tls"):
		hint = "SSL/TLS negotiation failed; check --sslmode"
	case strings.Contains(msg, "too many connections"):
		hint = fmt.Sprintf("server at %s has no free connection slots", addr)
	default:
		hint = "failed to connect to database"
	}

	return fmt.Errorf("%s: %w: %w", hint, polingest.ErrConnectionFailed, err)
}
