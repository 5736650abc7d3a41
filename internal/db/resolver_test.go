package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/polingest/internal/config"
	"github.com/vvka-141/polingest/pkg/polingest"
)

func TestResolveConnectionParams_Precedence(t *testing.T) {
	project := &config.ProjectConfig{Connection: config.ConnectionConfig{
		Host: "yaml-host", Port: 7000, Username: "yaml-user", Database: "yaml-db", SSLMode: "disable",
	}}

	t.Run("yaml only", func(t *testing.T) {
		cfg, err := ResolveConnectionParams(nil, &EnvVars{}, project)
		require.NoError(t, err)
		assert.Equal(t, "yaml-host", cfg.Host)
		assert.Equal(t, 7000, cfg.Port)
		assert.Equal(t, "yaml-user", cfg.Username)
		assert.Equal(t, "yaml-db", cfg.Database)
		assert.Equal(t, "disable", cfg.SSLMode)
	})

	t.Run("env beats yaml", func(t *testing.T) {
		env := &EnvVars{PGHOST: "env-host", PGPORT: "6000", PGDATABASE: "env-db", PGPASSWORD: "pw"}
		cfg, err := ResolveConnectionParams(nil, env, project)
		require.NoError(t, err)
		assert.Equal(t, "env-host", cfg.Host)
		assert.Equal(t, 6000, cfg.Port)
		assert.Equal(t, "env-db", cfg.Database)
		assert.Equal(t, "pw", cfg.Password)
	})

	t.Run("flags beat env", func(t *testing.T) {
		env := &EnvVars{PGHOST: "env-host", PGPORT: "6000"}
		flags := &ConnFlags{Host: "flag-host", Port: 5555, Database: "flag-db"}
		cfg, err := ResolveConnectionParams(flags, env, project)
		require.NoError(t, err)
		assert.Equal(t, "flag-host", cfg.Host)
		assert.Equal(t, 5555, cfg.Port)
		assert.Equal(t, "flag-db", cfg.Database)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := ResolveConnectionParams(&ConnFlags{Username: "me"}, &EnvVars{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 5432, cfg.Port)
		assert.Equal(t, "prefer", cfg.SSLMode)
		assert.Equal(t, polingest.DefaultDatabase, cfg.Database)
	})
}

func TestResolveConnectionParams_ConnectionStrings(t *testing.T) {
	t.Run("flag connection string", func(t *testing.T) {
		flags := &ConnFlags{ConnectionString: "postgresql://a@h1:1111/one", Database: "override"}
		cfg, err := ResolveConnectionParams(flags, &EnvVars{DatabaseURL: "postgresql://b@h2/two"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "h1", cfg.Host)
		assert.Equal(t, "override", cfg.Database)
	})

	t.Run("DATABASE_URL without granular flags", func(t *testing.T) {
		cfg, err := ResolveConnectionParams(nil, &EnvVars{DatabaseURL: "postgresql://b@h2/two", PGSSLMODE: "require"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "h2", cfg.Host)
		assert.Equal(t, "two", cfg.Database)
		assert.Equal(t, "require", cfg.SSLMode)
	})

	t.Run("granular flags ignore DATABASE_URL", func(t *testing.T) {
		cfg, err := ResolveConnectionParams(&ConnFlags{Host: "h3"}, &EnvVars{DatabaseURL: "postgresql://b@h2/two"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "h3", cfg.Host)
	})

	t.Run("conflict", func(t *testing.T) {
		_, err := ResolveConnectionParams(&ConnFlags{ConnectionString: "postgresql://h/db", Host: "x"}, nil, nil)
		assert.True(t, errors.Is(err, polingest.ErrInvalidConfig))
	})

	t.Run("bad PGPORT", func(t *testing.T) {
		_, err := ResolveConnectionParams(nil, &EnvVars{PGPORT: "abc"}, nil)
		assert.True(t, errors.Is(err, polingest.ErrInvalidConfig))
	})
}

func TestResolveConnectionParams_Auth(t *testing.T) {
	env := &EnvVars{AWSRegion: "us-east-1", AzureTenantID: "t-env", AzureClientID: "c-env", AzureClientSecret: "secret"}

	t.Run("aws region from env", func(t *testing.T) {
		cfg, err := ResolveConnectionParams(&ConnFlags{Auth: "aws", Username: "u"}, env, nil)
		require.NoError(t, err)
		assert.Equal(t, polingest.AuthMethodAWSIAM, cfg.AuthMethod)
		assert.Equal(t, "us-east-1", cfg.AWSRegion)
	})

	t.Run("azure flag beats env", func(t *testing.T) {
		cfg, err := ResolveConnectionParams(&ConnFlags{Auth: "azure", AzureTenantID: "t-flag", Username: "u"}, env, nil)
		require.NoError(t, err)
		assert.Equal(t, polingest.AuthMethodAzureEntraID, cfg.AuthMethod)
		assert.Equal(t, "t-flag", cfg.AzureTenantID)
		assert.Equal(t, "c-env", cfg.AzureClientID)
		assert.Equal(t, "secret", cfg.AzureClientSecret)
	})

	t.Run("google from yaml", func(t *testing.T) {
		project := &config.ProjectConfig{Connection: config.ConnectionConfig{AuthMethod: "google", GoogleInstance: "p:r:i"}}
		cfg, err := ResolveConnectionParams(&ConnFlags{Username: "u"}, &EnvVars{}, project)
		require.NoError(t, err)
		assert.Equal(t, polingest.AuthMethodGoogleIAM, cfg.AuthMethod)
		assert.Equal(t, "p:r:i", cfg.GoogleInstance)
	})

	t.Run("azure env alone does not switch auth", func(t *testing.T) {
		cfg, err := ResolveConnectionParams(&ConnFlags{Username: "u"}, env, nil)
		require.NoError(t, err)
		assert.Equal(t, polingest.AuthMethodStandard, cfg.AuthMethod)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := ResolveConnectionParams(&ConnFlags{Auth: "ldap"}, env, nil)
		assert.True(t, errors.Is(err, polingest.ErrUnsupportedAuthMethod))
	})
}
