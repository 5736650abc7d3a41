package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvka-141/polingest/internal/config"
	"github.com/vvka-141/polingest/internal/db"
	"github.com/vvka-141/polingest/pkg/polingest"
)

// storeFlags holds the store selection and PostgreSQL connection flags shared
// by every command that opens a store.
type storeFlags struct {
	configDir   string
	driver      string
	sqlitePath  string
	autoMigrate bool
	conn        db.ConnFlags
}

func (f *storeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configDir, "config-dir", ".",
		"Directory holding "+config.ConfigFileName)
	fs.StringVar(&f.driver, "driver", "",
		"Store backend: postgres or sqlite (env POLINGEST_DRIVER, default postgres)")
	fs.StringVar(&f.sqlitePath, "sqlite-path", "",
		"SQLite database file (env POLINGEST_SQLITE_PATH, default polingest.db)")
	fs.BoolVar(&f.autoMigrate, "auto-migrate", true,
		"Apply pending schema migrations when the store is opened")

	fs.StringVar(&f.conn.ConnectionString, "connection", "",
		"PostgreSQL connection string (URI or key=value); falls back to $DATABASE_URL")
	fs.StringVarP(&f.conn.Host, "host", "h", "",
		"PostgreSQL host (env PGHOST, default localhost)")
	fs.IntVarP(&f.conn.Port, "port", "p", 0,
		"PostgreSQL port (env PGPORT, default 5432)")
	fs.StringVarP(&f.conn.Username, "username", "U", "",
		"PostgreSQL user (env PGUSER)")
	fs.StringVarP(&f.conn.Database, "database", "d", "",
		"Database to ingest into (env PGDATABASE, default postgres)")
	fs.StringVar(&f.conn.SSLMode, "sslmode", "",
		"SSL mode: disable, allow, prefer, require, verify-ca, verify-full (env PGSSLMODE)")
	fs.StringVar(&f.conn.Auth, "auth", "",
		"Cloud authentication: aws, google or azure")
	fs.StringVar(&f.conn.AWSRegion, "aws-region", "",
		"AWS region for IAM authentication (env AWS_REGION)")
	fs.StringVar(&f.conn.GoogleInstance, "google-instance", "",
		"Cloud SQL instance connection name, project:region:instance")
	fs.StringVar(&f.conn.AzureTenantID, "azure-tenant-id", "",
		"Azure tenant ID (env AZURE_TENANT_ID)")
	fs.StringVar(&f.conn.AzureClientID, "azure-client-id", "",
		"Azure client ID (env AZURE_CLIENT_ID)")
}

// resolve layers the flags over environment, polingest.yaml and defaults.
// The PostgreSQL connection is only resolved for the postgres driver.
func (f *storeFlags) resolve(cmd *cobra.Command) (polingest.StoreConfig, *config.ProjectConfig, error) {
	project, err := config.LoadOptional(f.configDir)
	if err != nil {
		return polingest.StoreConfig{}, nil, fmt.Errorf("load %s: %w: %w", config.ConfigFileName, polingest.ErrInvalidConfig, err)
	}

	settings, err := config.ResolveStore(project.Store)
	if err != nil {
		return polingest.StoreConfig{}, nil, err
	}

	cfg := polingest.StoreConfig{
		Driver:      settings.Driver,
		SQLitePath:  settings.SQLitePath,
		AutoMigrate: settings.AutoMigrate,
	}
	if f.driver != "" {
		cfg.Driver = polingest.Driver(strings.ToLower(f.driver))
	}
	if f.sqlitePath != "" {
		cfg.SQLitePath = f.sqlitePath
	}
	if cmd.Flags().Changed("auto-migrate") {
		cfg.AutoMigrate = f.autoMigrate
	}

	if cfg.Driver == polingest.DriverPostgres {
		conn, err := db.ResolveConnectionParams(&f.conn, db.LoadFromEnvironment(), project)
		if err != nil {
			return polingest.StoreConfig{}, nil, err
		}
		cfg.Connection = conn
	}

	if err := cfg.Validate(); err != nil {
		return polingest.StoreConfig{}, nil, err
	}
	return cfg, project, nil
}
