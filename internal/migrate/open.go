package migrate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/onionmixer/transbasket/internal/cachecore"
	"github.com/onionmixer/transbasket/internal/cachecore/sqlitebackend"
	"github.com/onionmixer/transbasket/internal/cachecore/textbackend"
	"github.com/onionmixer/transbasket/internal/config"
)

// OpenBackend opens a standalone backend of the given kind for migration use,
// reading its settings from the JSON file at configPath. Only "text" and
// "sqlite" are supported — mongodb and redis are reserved identifiers with
// no implementation, same as the daemon's own backend factory.
func OpenBackend(kind cachecore.Kind, configPath string, logger zerolog.Logger) (cachecore.Backend, error) {
	switch kind {
	case cachecore.KindText:
		cfg, err := loadTextConfig(configPath)
		if err != nil {
			return nil, err
		}
		return textbackend.Open(cfg.Path, logger)

	case cachecore.KindSQLite:
		cfg, err := loadSQLiteConfig(configPath)
		if err != nil {
			return nil, err
		}
		return sqlitebackend.Open(cfg, logger, nil)

	default:
		return nil, fmt.Errorf("migrate: %w: %s (only text and sqlite support migration)", cachecore.ErrUnsupportedKind, kind)
	}
}

func loadTextConfig(path string) (config.TextBackendConfig, error) {
	var cfg config.TextBackendConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("migrate: read text config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("migrate: parse text config: %w", err)
	}
	if cfg.Path == "" {
		return cfg, fmt.Errorf("migrate: text config %q: path is required", path)
	}
	return cfg, nil
}

func loadSQLiteConfig(path string) (sqlitebackend.Config, error) {
	var fileCfg config.SQLiteBackendConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return sqlitebackend.Config{}, fmt.Errorf("migrate: read sqlite config: %w", err)
	}
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return sqlitebackend.Config{}, fmt.Errorf("migrate: parse sqlite config: %w", err)
	}
	if fileCfg.Path == "" {
		return sqlitebackend.Config{}, fmt.Errorf("migrate: sqlite config %q: path is required", path)
	}

	cfg := sqlitebackend.DefaultConfig(fileCfg.Path)
	cfg.WALMode = fileCfg.WALMode
	if fileCfg.Synchronous != "" {
		cfg.Synchronous = fileCfg.Synchronous
	}
	if fileCfg.CacheSizePgs != 0 {
		cfg.CacheSizePgs = fileCfg.CacheSizePgs
	}
	if fileCfg.MMapSizeByte != 0 {
		cfg.MMapSizeByte = fileCfg.MMapSizeByte
	}
	if fileCfg.BusyTimeout != 0 {
		cfg.BusyTimeout = fileCfg.BusyTimeout
	}
	return cfg, nil
}
