// Command transbasketd runs the translation-proxy daemon: the HTTP API,
// the translation cache backed by a pluggable storage engine, the external
// translator client, and the background maintainer that keeps the cache
// durable and bounded.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/onionmixer/transbasket/internal/api"
	"github.com/onionmixer/transbasket/internal/cachecore"
	"github.com/onionmixer/transbasket/internal/cachecore/sqlitebackend"
	"github.com/onionmixer/transbasket/internal/cachecore/textbackend"
	"github.com/onionmixer/transbasket/internal/config"
	"github.com/onionmixer/transbasket/internal/envelope"
	"github.com/onionmixer/transbasket/internal/maintainer"
	"github.com/onionmixer/transbasket/internal/observability"
	"github.com/onionmixer/transbasket/internal/translator"
	"github.com/onionmixer/transbasket/pkg/version"
)

func main() {
	configPath := "config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:        cfg.GetLogLevel(),
		Format:       cfg.Logging.Format,
		OutputPath:   cfg.Logging.OutputPath,
		ErrorPath:    cfg.Logging.ErrorPath,
		EnableCaller: cfg.Logging.EnableCaller,
		EnableStack:  cfg.Logging.EnableStack,
		Service:      "transbasketd",
		Version:      version.Version,
	})

	logger.Info().
		Str("version", version.Version).
		Str("git_commit", version.GitCommit).
		Str("platform", version.Platform).
		Msg("starting transbasket translation proxy")

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker(logger, version.Version)

	backend, kind, err := openBackend(cfg.Cache, logger, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open cache backend")
	}
	registerBackendHealthCheck(health, backend)
	health.RegisterCheck("disk_space", observability.DiskSpaceHealthCheck(cfg.App.DataDir, 100*1024*1024))
	health.RegisterCheck("memory", observability.MemoryHealthCheck(2*1024*1024*1024))

	cache := cachecore.New(backend, kind, cfg.Cache.Threshold, logger, metrics)

	maint := maintainer.New(cache, maintainer.Config{
		CleanupEnabled: cfg.Cache.CleanupEnabled,
		CleanupDays:    cfg.Cache.CleanupDays,
	}, logger)
	maint.Start()

	translatorClient := translator.New(translator.Config{
		BaseURL:          cfg.Translation.BaseURL,
		APIKey:           cfg.Translation.APIKey,
		Model:            cfg.Translation.Model,
		Timeout:          cfg.Translation.Timeout,
		MaxElapsedTime:   cfg.Translation.MaxElapsedTime,
		CircuitBreaker:   cfg.Translation.CircuitBreaker,
		MaxLatency:       cfg.Translation.MaxLatency,
		FailureThreshold: cfg.Translation.FailureThreshold,
	}, logger)

	apiServer := api.New(cfg.Server, cache, translatorClient, envelope.DefaultConfig(), health, metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("cache_backend", string(kind)).
		Msg("transbasket started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error, initiating shutdown")
	}

	logger.Info().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// 1. Stop accepting new connections and drain in-flight requests.
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error — some requests may not have completed")
	} else {
		logger.Info().Msg("HTTP server drained and stopped")
	}

	// 2. Stop the maintainer, forcing one last save.
	maint.Stop()

	// 3. Close the backend last, since nothing above depends on it once the
	// maintainer's final save has completed.
	if err := backend.Close(); err != nil {
		logger.Error().Err(err).Msg("backend close error")
	} else {
		logger.Info().Msg("cache backend closed")
	}

	logger.Info().Msg("transbasket shut down successfully")
}

// openBackend builds the configured cache backend. mongodb and redis are
// reserved identifiers with no implementation: requesting either falls back
// to the text backend with a logged warning, per spec.
func openBackend(cfg config.CacheConfig, logger zerolog.Logger, metrics *observability.Metrics) (cachecore.Backend, cachecore.Kind, error) {
	switch cachecore.Kind(cfg.Backend) {
	case cachecore.KindSQLite:
		sqliteCfg := sqlitebackend.Config{
			Path:         cfg.SQLite.Path,
			WALMode:      cfg.SQLite.WALMode,
			Synchronous:  cfg.SQLite.Synchronous,
			CacheSizePgs: cfg.SQLite.CacheSizePgs,
			MMapSizeByte: cfg.SQLite.MMapSizeByte,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		}
		backend, err := sqlitebackend.Open(sqliteCfg, logger, metrics)
		if err != nil {
			return nil, "", err
		}
		return backend, cachecore.KindSQLite, nil

	case cachecore.KindMongoDB, cachecore.KindRedis:
		logger.Warn().Str("requested", cfg.Backend).Msg("backend not implemented, falling back to text")
		fallthrough

	default:
		backend, err := textbackend.Open(cfg.Text.Path, logger)
		if err != nil {
			return nil, "", err
		}
		return backend, cachecore.KindText, nil
	}
}

// registerBackendHealthCheck wires a database health check for backends that
// expose one. The text backend has no external dependency to ping.
func registerBackendHealthCheck(health *observability.HealthChecker, backend cachecore.Backend) {
	if sqliteBackend, ok := backend.(*sqlitebackend.Backend); ok {
		health.RegisterCheck("cache_backend", observability.DatabaseHealthCheck(sqliteBackend.Ping))
	}
}
