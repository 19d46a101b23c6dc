// Package config loads and validates the vibemcp configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file
// (~/.vibemcp/config.yaml, or $VIBE_CONFIG), then VIBE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete vibemcp configuration.
type Config struct {
	// Root is the workspace root holding one directory per project.
	Root string `yaml:"root" json:"root"`

	// DBPath is the SQLite index location. Empty resolves to <root>/index.db.
	DBPath string `yaml:"db_path" json:"db_path"`

	// AuthToken, when set, is the bearer token clients must present.
	AuthToken string `yaml:"auth_token" json:"auth_token"`

	// ReadOnly rejects every mutating tool when true.
	ReadOnly bool `yaml:"read_only" json:"read_only"`

	// WebhooksEnabled toggles webhook registration and delivery.
	WebhooksEnabled bool `yaml:"webhooks_enabled" json:"webhooks_enabled"`

	Sync    SyncConfig    `yaml:"sync" json:"sync"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// SyncConfig configures the background index sync loop.
type SyncConfig struct {
	// Enabled runs the periodic sync loop while serving.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Interval between sync passes, as a Go duration string (e.g. "5m").
	Interval string `yaml:"interval" json:"interval"`
	// Watch additionally applies filesystem events between passes.
	Watch bool `yaml:"watch" json:"watch"`
}

// LoggingConfig configures structured file logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`
	// File is the log file path. Empty uses ~/.vibemcp/logs/server.log.
	File string `yaml:"file" json:"file"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Root:            DefaultRoot(),
		DBPath:          "",
		AuthToken:       "",
		ReadOnly:        false,
		WebhooksEnabled: true,
		Sync: SyncConfig{
			Enabled:  true,
			Interval: "5m",
			Watch:    false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Server: ServerConfig{
			Transport: "stdio",
		},
	}
}

// DefaultRoot returns the default workspace root (~/.vibe).
// Falls back to temp directory if home directory is unavailable.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".vibe")
	}
	return filepath.Join(home, ".vibe")
}

// DefaultConfigPath returns the YAML config file location.
// $VIBE_CONFIG overrides the default ~/.vibemcp/config.yaml.
func DefaultConfigPath() string {
	if p := os.Getenv("VIBE_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".vibemcp", "config.yaml")
	}
	return filepath.Join(home, ".vibemcp", "config.yaml")
}

// Load builds the effective configuration.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. YAML config file (~/.vibemcp/config.yaml or $VIBE_CONFIG)
//  3. Environment variables (VIBE_*)
func Load() (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(DefaultConfigPath()); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	cfg.Root = expandTilde(cfg.Root)
	cfg.DBPath = expandTilde(cfg.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile merges a YAML config file into c when the file exists.
// Fields absent from the file keep their current (default) values, so an
// explicit `webhooks_enabled: false` survives while a missing key does not
// clobber the default.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No config file is fine - use defaults
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies VIBE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VIBE_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("VIBE_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("VIBE_AUTH_TOKEN"); v != "" {
		c.AuthToken = v
	}
	if v := os.Getenv("VIBE_READ_ONLY"); v != "" {
		c.ReadOnly = parseBool(v)
	}
	if v := os.Getenv("VIBE_WEBHOOKS_ENABLED"); v != "" {
		c.WebhooksEnabled = parseBool(v)
	}
	if v := os.Getenv("VIBE_SYNC_INTERVAL"); v != "" {
		if d, err := parseInterval(v); err == nil && d > 0 {
			c.Sync.Interval = d.String()
		}
	}
	if v := os.Getenv("VIBE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// DatabasePath resolves the effective SQLite index path.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.Root, "index.db")
}

// SyncInterval returns the parsed sync interval.
// Falls back to the default when the configured value is unparseable.
func (c *Config) SyncInterval() time.Duration {
	d, err := parseInterval(c.Sync.Interval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root must not be empty")
	}

	// Tokens shorter than 32 characters are trivially brute-forceable
	if c.AuthToken != "" && len(c.AuthToken) < 32 {
		return fmt.Errorf("auth_token must be at least 32 characters, got %d", len(c.AuthToken))
	}

	if c.Sync.Enabled {
		d, err := parseInterval(c.Sync.Interval)
		if err != nil {
			return fmt.Errorf("sync.interval is not a valid duration: %q", c.Sync.Interval)
		}
		if d <= 0 {
			return fmt.Errorf("sync.interval must be positive, got %q", c.Sync.Interval)
		}
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// parseInterval parses a sync interval, accepting a Go duration string
// ("90s", "5m") or a bare number of seconds ("300").
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration: %q", s)
}

// parseBool interprets common truthy spellings.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// expandTilde expands a leading ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
