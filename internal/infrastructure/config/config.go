// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for kin configuration.
	DefaultConfigDir = ".kin"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultRegistersFile is the default registers file name.
	DefaultRegistersFile = "registers.yaml"
	// DefaultDatabaseFile is the SQLite file name inside a register directory.
	DefaultDatabaseFile = "kin.db"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	SQLite SQLiteConfig `yaml:"sqlite,omitempty"`
	Log    LogConfig    `yaml:"log,omitempty"`
	Graph  GraphConfig  `yaml:"graph,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite graph store.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database.
	// For per-register databases, this is computed dynamically using SQLitePathForRegister.
	Path string `yaml:"path,omitempty"`

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout,omitempty" env:"KIN_SQLITE_BUSY_TIMEOUT"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty" env:"KIN_LOG_LEVEL"`
	// Format is console or json.
	Format string `yaml:"format,omitempty" env:"KIN_LOG_FORMAT"`
}

// GraphConfig holds relationship engine settings.
type GraphConfig struct {
	// CascadeReciprocalDelete removes the auto-created counterpart when an
	// edge is deleted.
	CascadeReciprocalDelete bool `yaml:"cascade_reciprocal_delete" env:"KIN_CASCADE_RECIPROCAL_DELETE"`

	// TxTimeout bounds a transaction when the caller set no deadline.
	TxTimeout time.Duration `yaml:"tx_timeout,omitempty" env:"KIN_TX_TIMEOUT"`

	// ImportWorkers is the number of rows applied concurrently during import.
	ImportWorkers int `yaml:"import_workers,omitempty" env:"KIN_IMPORT_WORKERS"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		SQLite: SQLiteConfig{
			BusyTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Graph: GraphConfig{
			TxTimeout:     5 * time.Second,
			ImportWorkers: 1,
		},
	}
}

// Load loads configuration from the .kin directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'kin init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies KIN_* environment variable overrides. Unset
// variables leave the file values in place.
func (c *Config) applyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}
	return nil
}

// ConfigDir returns the path to the .kin config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// RegistersFilePath returns the path to the registers file.
func RegistersFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultRegistersFile)
}

// SanitizeRegisterName converts a register name to a safe directory name.
func SanitizeRegisterName(name string) string {
	// Convert to lowercase
	name = strings.ToLower(name)

	// Replace spaces and hyphens with underscores
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	// Remove any characters that aren't alphanumeric or underscore
	name = reNonAlphanumeric.ReplaceAllString(name, "")

	// Remove consecutive underscores
	name = reMultipleUnderscores.ReplaceAllString(name, "_")

	// Trim leading/trailing underscores
	name = strings.Trim(name, "_")

	if name == "" {
		return "default"
	}

	return name
}

// SQLitePathForRegister returns the SQLite database path for a given register.
func SQLitePathForRegister(basePath, registerName string) string {
	return filepath.Join(RegisterDir(basePath, registerName), DefaultDatabaseFile)
}

// RegisterDir returns the directory path for a given register.
func RegisterDir(basePath, registerName string) string {
	return filepath.Join(basePath, DefaultConfigDir, "registers", SanitizeRegisterName(registerName))
}
