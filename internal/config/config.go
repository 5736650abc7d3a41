package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ConnectionConfig is the PostgreSQL section of polingest.yaml.
// Passwords are never read from the file; use PGPASSWORD or a connection string.
type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// StoreConfig selects the backend ingestion writes to.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	AutoMigrate *bool  `yaml:"auto_migrate,omitempty"`
}

// ServerConfig configures `polingest serve`.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	UploadDir   string   `yaml:"upload_dir"`
	MaxUploadMB int      `yaml:"max_upload_mb"`
	Workers     int      `yaml:"workers"`
	MetricsPath string   `yaml:"metrics_path"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
	LogFormat   string   `yaml:"log_format,omitempty"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Store      StoreConfig      `yaml:"store"`
	Server     ServerConfig     `yaml:"server"`
}

const ConfigFileName = "polingest.yaml"

// Load reads polingest.yaml from dir.
func Load(dir string) (*ProjectConfig, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return &cfg, nil
}

// LoadOptional is Load that treats a missing file as an empty configuration.
func LoadOptional(dir string) (*ProjectConfig, error) {
	cfg, err := Load(dir)
	if errors.Is(err, ErrConfigNotFound) {
		return &ProjectConfig{}, nil
	}
	return cfg, err
}
