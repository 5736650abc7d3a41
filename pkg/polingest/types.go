package polingest

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConnectionConfig represents parsed PostgreSQL connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWS IAM authentication (AuthMethodAWSIAM)
	AWSRegion string

	// Google Cloud SQL instance connection name, project:region:instance (AuthMethodGoogleIAM)
	GoogleInstance string

	// Azure Entra ID authentication (AuthMethodAzureEntraID).
	// If all three are provided, Service Principal authentication is used,
	// otherwise the DefaultAzureCredential chain.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod maps the names accepted by --auth and polingest.yaml to an AuthMethod.
// An empty string selects standard authentication.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "gcp", "google-iam":
		return AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure-entra-id":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("%q: %w", s, ErrUnsupportedAuthMethod)
	}
}

// Driver selects the store backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// StoreConfig describes which store an ingestion run writes to.
type StoreConfig struct {
	Driver Driver

	// Connection is used by the postgres driver.
	Connection *ConnectionConfig

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string

	// AutoMigrate applies pending schema migrations when the store is opened.
	AutoMigrate bool
}

// Validate checks if the StoreConfig has all required fields for its driver.
// It returns a multi-error if multiple validation failures occur.
func (c *StoreConfig) Validate() error {
	var errs []error

	switch c.Driver {
	case DriverPostgres:
		if c.Connection == nil {
			errs = append(errs, fmt.Errorf("connection is required for driver %q: %w", c.Driver, ErrInvalidConfig))
		} else if !c.Connection.AuthMethod.IsValid() {
			errs = append(errs, fmt.Errorf("auth method %s: %w", c.Connection.AuthMethod, ErrUnsupportedAuthMethod))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, fmt.Errorf("sqlite path is required for driver %q: %w", c.Driver, ErrInvalidConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q: %w", c.Driver, ErrInvalidConfig))
	}

	return errors.Join(errs...)
}
