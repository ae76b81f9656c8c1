package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	dataDir := getDefaultDataDir()

	return &Config{
		App: AppConfig{
			Name:        "transbasket",
			Version:     "0.1.0",
			Environment: "dev",
			DataDir:     dataDir,
		},

		Cache: CacheConfig{
			Backend: "text",
			Text: TextBackendConfig{
				Path: filepath.Join(dataDir, "cache.jsonl"),
			},
			SQLite: SQLiteBackendConfig{
				Path:         filepath.Join(dataDir, "cache.db"),
				WALMode:      true,
				Synchronous:  "NORMAL",
				CacheSizePgs: 2000,
				MMapSizeByte: 256 * 1024 * 1024,
				BusyTimeout:  5 * time.Second,
			},
			Threshold:      5,
			CleanupEnabled: true,
			CleanupDays:    30,
		},

		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    20,
		},

		Translation: TranslationConfig{
			BaseURL:          "http://localhost:8000/v1",
			APIKey:           "",
			Model:            "gpt-4o-mini",
			Timeout:          10 * time.Second,
			MaxElapsedTime:   30 * time.Second,
			CircuitBreaker:   true,
			MaxLatency:       2 * time.Second,
			FailureThreshold: 5,
		},

		Logging: LoggingConfig{
			Level:        "info",
			Format:       "json",
			OutputPath:   "stdout",
			ErrorPath:    "stderr",
			EnableCaller: false,
			EnableStack:  true,
		},
	}
}

// getDefaultDataDir returns the default data directory based on OS.
func getDefaultDataDir() string {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		baseDir = filepath.Join(os.Getenv("HOME"), "Library", "Application Support")
	default: // linux and others
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("HOME"), ".local", "share")
		}
	}

	return filepath.Join(baseDir, "transbasket")
}
