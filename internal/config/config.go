package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Config represents the complete daemon configuration.
type Config struct {
	App         AppConfig         `json:"app"`
	Cache       CacheConfig       `json:"cache"`
	Server      ServerConfig      `json:"server"`
	Translation TranslationConfig `json:"translation"`
	Logging     LoggingConfig     `json:"logging"`
}

// AppConfig contains general daemon settings.
type AppConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"` // dev, staging, production
	DataDir     string `json:"data_dir"`
}

// CacheConfig selects and tunes the translation-cache backend.
type CacheConfig struct {
	// Backend selects the storage engine: "text" or "sqlite". "mongodb" and
	// "redis" are reserved identifiers with no implementation — requesting
	// either falls back to "text" with a logged warning.
	Backend string `json:"backend"`

	Text   TextBackendConfig   `json:"text"`
	SQLite SQLiteBackendConfig `json:"sqlite"`

	// Threshold is the confirm-by-repetition admission count: an entry is
	// served from cache once its count reaches this value.
	Threshold int `json:"threshold"`

	// CleanupEnabled turns the maintainer's periodic Cleanup call on or off.
	CleanupEnabled bool `json:"cleanup_enabled"`
	// CleanupDays is the max age, in days, an entry may go unused before
	// Cleanup removes it.
	CleanupDays int `json:"cleanup_days"`
}

// TextBackendConfig configures the JSONL flat-file engine.
type TextBackendConfig struct {
	Path string `json:"path"`
}

// SQLiteBackendConfig configures the embedded-database engine.
type SQLiteBackendConfig struct {
	Path         string        `json:"path"`
	WALMode      bool          `json:"wal_mode"`
	Synchronous  string        `json:"synchronous"` // NORMAL, FULL, OFF
	CacheSizePgs int           `json:"cache_size_pages"`
	MMapSizeByte int64         `json:"mmap_size_bytes"`
	BusyTimeout  time.Duration `json:"busy_timeout"`
}

// ServerConfig contains the daemon's HTTP listener settings.
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	RateLimitRPS    int           `json:"rate_limit_rps"`
}

// TranslationConfig contains the external translation-provider settings.
type TranslationConfig struct {
	BaseURL          string        `json:"base_url"`
	APIKey           string        `json:"api_key"`
	Model            string        `json:"model"`
	Timeout          time.Duration `json:"timeout"`
	MaxElapsedTime   time.Duration `json:"max_elapsed_time"`
	CircuitBreaker   bool          `json:"circuit_breaker"`
	MaxLatency       time.Duration `json:"max_latency"`
	FailureThreshold int           `json:"failure_threshold"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level        string `json:"level"`  // debug, info, warn, error
	Format       string `json:"format"` // json, console
	OutputPath   string `json:"output_path"`
	ErrorPath    string `json:"error_path"`
	EnableCaller bool   `json:"enable_caller"`
	EnableStack  bool   `json:"enable_stack"`
}

// Load loads configuration from file and environment variables.
// Priority: env vars > config file > defaults. A missing config file is not
// an error: a fresh one is written to configPath with the defaults so
// subsequent runs (and operators inspecting the file) see exactly what's in
// effect.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				if err := cfg.Save(configPath); err != nil {
					return nil, fmt.Errorf("failed to create default config: %w", err)
				}
			} else {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("TRANSBASKET_ENV"); v != "" {
		c.App.Environment = v
	}
	if v := os.Getenv("TRANSBASKET_DATA_DIR"); v != "" {
		c.App.DataDir = v
	}
	if v := os.Getenv("TRANSBASKET_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("TRANSBASKET_TEXT_PATH"); v != "" {
		c.Cache.Text.Path = v
	}
	if v := os.Getenv("TRANSBASKET_SQLITE_PATH"); v != "" {
		c.Cache.SQLite.Path = v
	}
	if v := os.Getenv("TRANSBASKET_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("TRANSLATOR_BASE_URL"); v != "" {
		c.Translation.BaseURL = v
	}
	if v := os.Getenv("TRANSLATOR_API_KEY"); v != "" {
		c.Translation.APIKey = v
	}
	if v := os.Getenv("TRANSBASKET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Save writes the configuration to path as indented JSON, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the rest of the system
// cannot safely operate on.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return errors.New("app name cannot be empty")
	}
	if c.App.Environment != "dev" && c.App.Environment != "staging" && c.App.Environment != "production" {
		return fmt.Errorf("invalid environment: %s (must be dev, staging, or production)", c.App.Environment)
	}

	switch c.Cache.Backend {
	case "text", "sqlite", "mongodb", "redis":
	default:
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.Backend == "text" && c.Cache.Text.Path == "" {
		return errors.New("text backend path cannot be empty")
	}
	if c.Cache.Backend == "sqlite" && c.Cache.SQLite.Path == "" {
		return errors.New("sqlite backend path cannot be empty")
	}
	if c.Cache.Threshold < 1 {
		return fmt.Errorf("invalid cache threshold: %d", c.Cache.Threshold)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// GetLogLevel returns the zerolog level corresponding to the configured
// logging level.
func (c *Config) GetLogLevel() zerolog.Level {
	switch c.Logging.Level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// IsProduction reports whether the daemon is configured for production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment reports whether the daemon is configured for development.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "dev"
}
