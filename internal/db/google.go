package db

import (
	"context"
	"fmt"
	"net"
	"sync"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/polingest/pkg/polingest"
)

// GoogleCloudSQLConnector connects through the Cloud SQL Go Connector with
// IAM database authentication. Close releases the dialer and must be called
// after the pool is closed.
type GoogleCloudSQLConnector struct {
	config *polingest.ConnectionConfig
	logger polingest.Logger

	mu     sync.Mutex
	dialer *cloudsqlconn.Dialer
}

func NewGoogleCloudSQLConnector(config *polingest.ConnectionConfig, logger polingest.Logger) *GoogleCloudSQLConnector {
	return &GoogleCloudSQLConnector{config: config, logger: logger}
}

func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("create Cloud SQL dialer: %w: %w", polingest.ErrConnectionFailed, err)
	}

	dsn := fmt.Sprintf("user=%s dbname=%s sslmode=disable application_name=%s",
		c.config.Username, c.config.Database, polingest.DefaultAppName)
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("parse connection config: %w: %w", polingest.ErrInvalidConfig, err)
	}

	instance := c.config.GoogleInstance
	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.Dial(ctx, instance)
	}
	configurePool(poolConfig, c.logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		dialer.Close()
		return nil, wrapConnectionError(err, c.config)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		dialer.Close()
		return nil, wrapConnectionError(err, c.config)
	}

	c.mu.Lock()
	c.dialer = dialer
	c.mu.Unlock()
	return pool, nil
}

func (c *GoogleCloudSQLConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialer == nil {
		return nil
	}
	err := c.dialer.Close()
	c.dialer = nil
	return err
}
