// Package config loads the application-wide YAML configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/mrcode/health-manager/internal/store"
)

// AppDir names the application's directory under the XDG base directories
const AppDir = "health-manager"

// Config holds application-wide settings. Per-user preferences live in
// models.Settings inside each user's data directory.
type Config struct {
	DataDir    string        `yaml:"data_dir"`
	BcryptCost int           `yaml:"bcrypt_cost"`
	Storage    StorageConfig `yaml:"storage"`
	Log        LoggingConfig `yaml:"log"`
	Window     WindowConfig  `yaml:"window"`
}

// StorageConfig selects the measurement store backend
type StorageConfig struct {
	Backend string `yaml:"backend"` // csv, sqlite or postgres
	DSN     string `yaml:"dsn"`
}

// LoggingConfig configures the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// WindowConfig sizes the dashboard window
type WindowConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	MinWidth  int `yaml:"min_width"`
	MinHeight int `yaml:"min_height"`
}

// DefaultPath returns $XDG_CONFIG_HOME/health-manager/config.yaml
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppDir, "config.yaml")
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DataDir: filepath.Join(xdg.DataHome, AppDir),
		Storage: StorageConfig{
			Backend: store.BackendCSV,
		},
		Log: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Window: WindowConfig{
			Width:     1200,
			Height:    800,
			MinWidth:  800,
			MinHeight: 600,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is the user's config file
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("HEALTH_MANAGER_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if backend := os.Getenv("HEALTH_MANAGER_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if dsn := os.Getenv("HEALTH_MANAGER_DSN"); dsn != "" {
		c.Storage.DSN = dsn
	}
	if level := os.Getenv("HEALTH_MANAGER_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	switch c.Storage.Backend {
	case "", store.BackendCSV, store.BackendSQLite:
	case store.BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("%w: %q", store.ErrUnsupportedBackend, c.Storage.Backend)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if c.BcryptCost != 0 && (c.BcryptCost < 4 || c.BcryptCost > 31) {
		return fmt.Errorf("bcrypt_cost %d out of range [4, 31]", c.BcryptCost)
	}
	return nil
}

// StoreOptions returns the options for store.Open
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend: c.Storage.Backend,
		DSN:     c.Storage.DSN,
		DataDir: c.DataDir,
	}
}
