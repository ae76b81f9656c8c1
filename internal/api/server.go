// Package api exposes the daemon's HTTP surface: POST /translate, the
// health/liveness/readiness trio, and the Prometheus /metrics endpoint. It
// has no state of its own beyond what it needs to route a request to the
// cache façade and the translator client.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/onionmixer/transbasket/internal/cachecore"
	"github.com/onionmixer/transbasket/internal/config"
	"github.com/onionmixer/transbasket/internal/envelope"
	"github.com/onionmixer/transbasket/internal/observability"
	"github.com/onionmixer/transbasket/internal/translator"
)

// Server is the daemon's HTTP API: a chi router wired to the translation
// cache and the external translator, plus health and metrics endpoints.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	cache      *cachecore.Cache
	translator *translator.Client
	envelope   envelope.Config
	health     *observability.HealthChecker
	metrics    *observability.Metrics
	logger     zerolog.Logger
	loggerMW   *observability.LoggerMiddleware
	cfg        config.ServerConfig
}

// New builds a Server with the full middleware stack and route table wired.
func New(
	cfg config.ServerConfig,
	cache *cachecore.Cache,
	translatorClient *translator.Client,
	envCfg envelope.Config,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		cache:      cache,
		translator: translatorClient,
		envelope:   envCfg,
		health:     health,
		metrics:    metrics,
		logger:     logger.With().Str("component", "api_server").Logger(),
		cfg:        cfg,
	}
	s.loggerMW = observability.NewLoggerMiddleware(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(SecurityHeaders())
	r.Use(MaxBodySize(1 << 20)) // 1 MiB request body cap

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 20
	}
	r.Use(RateLimitWithHeaders(rps))

	if metrics != nil {
		r.Use(MetricsMiddleware(metrics))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	r.Handle("/metrics", metricsHandler())

	r.Post("/translate", s.handleTranslate)

	s.router = r
	return s
}

// Start begins listening for HTTP connections. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests, then returns.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the chi router as an http.Handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
