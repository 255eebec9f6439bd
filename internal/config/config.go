// Package config loads the application configuration: built-in defaults
// overlaid by an optional YAML file, overlaid by environment variables
// (prefix PROMOGATE).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Admin    AdminConfig    `yaml:"admin" envconfig:"ADMIN"`
	Throttle ThrottleConfig `yaml:"throttle" envconfig:"THROTTLE"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration. The backup
// directory is kept logically separate from the primary data directory.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	BackupDir string `yaml:"backup_dir" envconfig:"BACKUP_DIR" validate:"required"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// AdminConfig configures the admin authentication gate.
type AdminConfig struct {
	PIN        string        `yaml:"pin" envconfig:"PIN" validate:"len=6,numeric"`
	SessionTTL time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
}

// ThrottleConfig carries the attempt-throttle parameters for both
// operation namespaces.
type ThrottleConfig struct {
	ValidateMaxAttempts int           `yaml:"validate_max_attempts" envconfig:"VALIDATE_MAX_ATTEMPTS" validate:"min=1"`
	ValidateWindow      time.Duration `yaml:"validate_window" envconfig:"VALIDATE_WINDOW"`
	ValidateLockout     time.Duration `yaml:"validate_lockout" envconfig:"VALIDATE_LOCKOUT"`
	AdminMaxAttempts    int           `yaml:"admin_max_attempts" envconfig:"ADMIN_MAX_ATTEMPTS" validate:"min=1"`
	AdminWindow         time.Duration `yaml:"admin_window" envconfig:"ADMIN_WINDOW"`
	AdminLockout        time.Duration `yaml:"admin_lockout" envconfig:"ADMIN_LOCKOUT"`
}

// SecurityConfig contains transport-level protections.
type SecurityConfig struct {
	RateLimitRPS   float64 `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/promogate.log",
		},
		Paths: PathsConfig{
			DataDir:   "data",
			BackupDir: "data/backup",
			LogsDir:   "logs",
		},
		Admin: AdminConfig{
			PIN:        "000000",
			SessionTTL: 10 * time.Minute,
		},
		Throttle: ThrottleConfig{
			ValidateMaxAttempts: 10,
			ValidateWindow:      5 * time.Minute,
			ValidateLockout:     15 * time.Minute,
			AdminMaxAttempts:    5,
			AdminWindow:         15 * time.Minute,
			AdminLockout:        15 * time.Minute,
		},
		Security: SecurityConfig{
			RateLimitRPS:   25,
			RateLimitBurst: 50,
		},
	}
}

// Load builds the effective configuration. Each layer only overrides
// what it explicitly sets: the YAML file over the defaults, then the
// environment over both.
func Load() (*Config, error) {
	cfg := Default()

	configFile := configFilePath()
	if _, err := os.Stat(configFile); err == nil {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process("PROMOGATE", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays YAML file values onto cfg. Keys absent from the
// file leave the existing values untouched.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func configFilePath() string {
	if path := os.Getenv("PROMOGATE_CONFIG"); path != "" {
		return path
	}
	return "promogate.yaml"
}

// EnsureDirectories creates the directories the engine writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.BackupDir, c.Paths.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
