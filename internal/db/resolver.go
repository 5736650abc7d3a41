package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/polingest/internal/config"
	"github.com/vvka-141/polingest/pkg/polingest"
)

// ConnFlags holds the connection flags a command was given.
// There is no password flag: use $PGPASSWORD or a connection string.
type ConnFlags struct {
	ConnectionString string
	Host             string
	Port             int
	Username         string
	Database         string
	SSLMode          string

	Auth           string // "", aws, google, azure
	AWSRegion      string
	GoogleInstance string
	AzureTenantID  string
	AzureClientID  string
}

func (f *ConnFlags) hasGranular() bool {
	return f.Host != "" || f.Port != 0 || f.Username != "" || f.SSLMode != ""
}

// EnvVars are the libpq and cloud SDK variables the resolver reads.
type EnvVars struct {
	PGHOST, PGPORT, PGUSER, PGPASSWORD, PGDATABASE, PGSSLMODE string
	DatabaseURL                                                string

	AWSRegion         string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:            os.Getenv("PGHOST"),
		PGPORT:            os.Getenv("PGPORT"),
		PGUSER:            os.Getenv("PGUSER"),
		PGPASSWORD:        os.Getenv("PGPASSWORD"),
		PGDATABASE:        os.Getenv("PGDATABASE"),
		PGSSLMODE:         os.Getenv("PGSSLMODE"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		AWSRegion:         os.Getenv("AWS_REGION"),
		AzureTenantID:     os.Getenv("AZURE_TENANT_ID"),
		AzureClientID:     os.Getenv("AZURE_CLIENT_ID"),
		AzureClientSecret: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// ResolveConnectionParams builds the connection configuration.
//
// Source of the base parameters, first match wins:
//  1. --connection
//  2. DATABASE_URL, when no granular flag was given
//  3. granular flags, then PG* variables, then polingest.yaml, then defaults
//
// Giving both --connection and granular flags is an error.
// The auth method comes from --auth, else auth_method in polingest.yaml.
func ResolveConnectionParams(flags *ConnFlags, env *EnvVars, project *config.ProjectConfig) (*polingest.ConnectionConfig, error) {
	if flags == nil {
		flags = &ConnFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	var file config.ConnectionConfig
	if project != nil {
		file = project.Connection
	}

	if flags.ConnectionString != "" && flags.hasGranular() {
		return nil, fmt.Errorf("cannot combine --connection with -h, -p, -U or --sslmode: %w", polingest.ErrInvalidConfig)
	}

	var cfg *polingest.ConnectionConfig
	var err error
	switch {
	case flags.ConnectionString != "":
		cfg, err = ParseConnectionString(flags.ConnectionString)
	case !flags.hasGranular() && env.DatabaseURL != "":
		cfg, err = ParseConnectionString(env.DatabaseURL)
	default:
		cfg, err = resolveGranular(flags, env, file)
	}
	if err != nil {
		return nil, err
	}

	if flags.Database != "" {
		cfg.Database = flags.Database
	}
	cfg.SSLMode = firstNonEmpty(cfg.SSLMode, env.PGSSLMODE, "prefer")
	if cfg.Password == "" {
		cfg.Password = env.PGPASSWORD
	}

	if err := applyAuth(cfg, flags, env, file); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveGranular(flags *ConnFlags, env *EnvVars, file config.ConnectionConfig) (*polingest.ConnectionConfig, error) {
	cfg := defaultConnectionConfig()
	cfg.Host = firstNonEmpty(flags.Host, env.PGHOST, file.Host, cfg.Host)
	cfg.Username = firstNonEmpty(flags.Username, env.PGUSER, file.Username, os.Getenv("USER"), os.Getenv("USERNAME"))
	cfg.Database = firstNonEmpty(env.PGDATABASE, file.Database, cfg.Database)
	cfg.SSLMode = firstNonEmpty(flags.SSLMode, env.PGSSLMODE, file.SSLMode)

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.PGPORT != "":
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value %q: must be an integer: %w", env.PGPORT, polingest.ErrInvalidConfig)
		}
		cfg.Port = port
	case file.Port != 0:
		cfg.Port = file.Port
	}
	return cfg, nil
}

func applyAuth(cfg *polingest.ConnectionConfig, flags *ConnFlags, env *EnvVars, file config.ConnectionConfig) error {
	method, err := polingest.ParseAuthMethod(firstNonEmpty(flags.Auth, file.AuthMethod))
	if err != nil {
		return err
	}
	cfg.AuthMethod = method

	switch method {
	case polingest.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(flags.AWSRegion, file.AWSRegion, env.AWSRegion)
	case polingest.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(flags.GoogleInstance, file.GoogleInstance)
	case polingest.AuthMethodAzureEntraID:
		cfg.AzureTenantID = firstNonEmpty(flags.AzureTenantID, file.AzureTenantID, env.AzureTenantID)
		cfg.AzureClientID = firstNonEmpty(flags.AzureClientID, file.AzureClientID, env.AzureClientID)
		cfg.AzureClientSecret = env.AzureClientSecret
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
