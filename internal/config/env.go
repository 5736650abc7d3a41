package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/vvka-141/polingest/pkg/polingest"
)

// LoadEnvFiles loads the given .env files into the process environment,
// skipping files that do not exist. Variables already set are not overridden.
// Returns how many files were loaded.
func LoadEnvFiles(paths ...string) (int, error) {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Nil fields were not set in the environment.
type serverEnv struct {
	Addr        *string  `env:"POLINGEST_ADDR"`
	UploadDir   *string  `env:"POLINGEST_UPLOAD_DIR"`
	MaxUploadMB *int     `env:"POLINGEST_MAX_UPLOAD_MB"`
	Workers     *int     `env:"POLINGEST_WORKERS"`
	MetricsPath *string  `env:"POLINGEST_METRICS_PATH"`
	CORSOrigins []string `env:"POLINGEST_CORS_ORIGINS" envSeparator:","`
	LogFormat   *string  `env:"POLINGEST_LOG_FORMAT"`
}

type storeEnv struct {
	Driver      *string `env:"POLINGEST_DRIVER"`
	SQLitePath  *string `env:"POLINGEST_SQLITE_PATH"`
	AutoMigrate *bool   `env:"POLINGEST_AUTO_MIGRATE"`
}

// ServerSettings is the effective server configuration after defaults,
// polingest.yaml and environment have been applied.
type ServerSettings struct {
	Addr        string
	UploadDir   string
	MaxUploadMB int
	Workers     int
	MetricsPath string
	CORSOrigins []string
	LogFormat   string
}

// ResolveServer layers environment over file over defaults.
func ResolveServer(file ServerConfig) (ServerSettings, error) {
	s := ServerSettings{
		Addr:        polingest.DefaultListenAddress,
		UploadDir:   "uploads",
		MaxUploadMB: polingest.DefaultMaxUploadMB,
		Workers:     polingest.DefaultWorkers,
		MetricsPath: polingest.DefaultMetricsPath,
		CORSOrigins: []string{"*"},
		LogFormat:   "json",
	}

	setString(&s.Addr, file.Addr)
	setString(&s.UploadDir, file.UploadDir)
	setInt(&s.MaxUploadMB, file.MaxUploadMB)
	setInt(&s.Workers, file.Workers)
	setString(&s.MetricsPath, file.MetricsPath)
	setString(&s.LogFormat, file.LogFormat)
	if len(file.CORSOrigins) > 0 {
		s.CORSOrigins = file.CORSOrigins
	}

	var e serverEnv
	if err := env.Parse(&e); err != nil {
		return s, fmt.Errorf("server environment: %w: %w", polingest.ErrInvalidConfig, err)
	}
	setStringPtr(&s.Addr, e.Addr)
	setStringPtr(&s.UploadDir, e.UploadDir)
	setIntPtr(&s.MaxUploadMB, e.MaxUploadMB)
	setIntPtr(&s.Workers, e.Workers)
	setStringPtr(&s.MetricsPath, e.MetricsPath)
	setStringPtr(&s.LogFormat, e.LogFormat)
	if len(e.CORSOrigins) > 0 {
		s.CORSOrigins = e.CORSOrigins
	}

	return s, s.validate()
}

func (s ServerSettings) validate() error {
	switch {
	case s.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d: %w", s.Workers, polingest.ErrInvalidConfig)
	case s.MaxUploadMB < 1:
		return fmt.Errorf("max upload size must be at least 1 MB, got %d: %w", s.MaxUploadMB, polingest.ErrInvalidConfig)
	case !strings.HasPrefix(s.MetricsPath, "/"):
		return fmt.Errorf("metrics path %q must start with /: %w", s.MetricsPath, polingest.ErrInvalidConfig)
	}
	return nil
}

// StoreSettings is the effective store selection before CLI flags are applied.
type StoreSettings struct {
	Driver      polingest.Driver
	SQLitePath  string
	AutoMigrate bool
}

// ResolveStore layers environment over file over defaults (postgres, auto-migrate on).
func ResolveStore(file StoreConfig) (StoreSettings, error) {
	s := StoreSettings{
		Driver:      polingest.DriverPostgres,
		SQLitePath:  "polingest.db",
		AutoMigrate: true,
	}
	if file.Driver != "" {
		s.Driver = polingest.Driver(strings.ToLower(file.Driver))
	}
	setString(&s.SQLitePath, file.SQLitePath)
	if file.AutoMigrate != nil {
		s.AutoMigrate = *file.AutoMigrate
	}

	var e storeEnv
	if err := env.Parse(&e); err != nil {
		return s, fmt.Errorf("store environment: %w: %w", polingest.ErrInvalidConfig, err)
	}
	if e.Driver != nil {
		s.Driver = polingest.Driver(strings.ToLower(*e.Driver))
	}
	setStringPtr(&s.SQLitePath, e.SQLitePath)
	if e.AutoMigrate != nil {
		s.AutoMigrate = *e.AutoMigrate
	}

	if s.Driver != polingest.DriverPostgres && s.Driver != polingest.DriverSQLite {
		return s, fmt.Errorf("unknown store driver %q: %w", s.Driver, polingest.ErrInvalidConfig)
	}
	return s, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setStringPtr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setIntPtr(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
