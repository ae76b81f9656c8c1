package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleHealth returns the aggregated health status from all registered checks.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	result := s.health.Check(r.Context())

	status := http.StatusOK
	if result.IsUnhealthy() {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, result)
}

// handleLiveness reports whether the process is alive, independent of
// backend or provider health.
// GET /health/live
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReadiness reports whether the service is ready to accept traffic.
// GET /health/ready
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	result := s.health.Check(r.Context())
	status := http.StatusOK
	if result.IsUnhealthy() {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]string{"status": string(result.Status)})
}

// metricsHandler exposes the Prometheus exposition format.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}
