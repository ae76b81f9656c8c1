package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/onionmixer/transbasket/internal/envelope"
	"github.com/onionmixer/transbasket/internal/observability"
)

// translateRequest is the wire body of POST /translate.
type translateRequest struct {
	Timestamp string `json:"timestamp"`
	UUID      string `json:"uuid"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
}

// handleTranslate services POST /translate: decode, validate, reconcile
// against the cache (which calls out to the translator on a miss or
// unconfirmed hit), and echo the request's timestamp and uuid on success.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errCodeMalformedBody, "request body is not valid JSON", "")
		return
	}

	envReq := envelope.Request{
		Timestamp: req.Timestamp,
		UUID:      req.UUID,
		From:      req.From,
		To:        req.To,
		Text:      req.Text,
	}
	if err := s.envelope.Validate(envReq); err != nil {
		writeError(w, http.StatusUnprocessableEntity, errCodeValidation, err.Error(), req.UUID)
		return
	}

	langPair := req.From + "-" + req.To

	reqLogger := s.loggerMW.WithRequestID(middleware.GetReqID(r.Context()))
	reqLogger = observability.NewLoggerMiddleware(reqLogger).WithLangPair(req.From, req.To)
	reqLogger = observability.NewLoggerMiddleware(reqLogger).WithAction("translate")
	reqLogger = observability.NewLoggerMiddleware(reqLogger).WithBackend(string(s.cache.Kind()))
	event := &observability.LogEvent{Logger: reqLogger, Action: "translate", Entity: "lang_pair", ID: langPair}

	start := time.Now()
	translated, cached, err := s.cache.Reconcile(req.From, req.To, req.Text, func() (string, error) {
		return s.translator.Translate(r.Context(), req.From, req.To, req.Text)
	})
	if err != nil {
		status, code, retryAfter := classifyTranslationError(err)
		if s.metrics != nil {
			s.metrics.TranslationErrors.WithLabelValues(strings.ToLower(code)).Inc()
		}
		event.Context = map[string]interface{}{"error_code": code}
		event.Error(err, "translate request failed")
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		writeError(w, status, code, err.Error(), req.UUID)
		return
	}

	if s.metrics != nil {
		label := "success"
		if cached {
			label = "cached"
			s.metrics.TranslationCacheHits.WithLabelValues(langPair).Inc()
		}
		s.metrics.TranslationRequests.WithLabelValues(langPair, label).Inc()
		s.metrics.TranslationLatency.WithLabelValues(langPair).Observe(float64(time.Since(start).Milliseconds()))
	}

	event.Logger = observability.NewLoggerMiddleware(reqLogger).WithContext(map[string]interface{}{"cached": cached})
	event.Success("translate request completed")

	writeJSON(w, http.StatusOK, translateResponse{
		Timestamp:      req.Timestamp,
		UUID:           req.UUID,
		TranslatedText: translated,
	})
}

// classifyTranslationError maps an error from cachecore.Cache.Reconcile (which
// on a miss is whatever internal/translator.Client.Translate returned) onto
// the status codes spec.md §6 assigns the surrounding server: 502 for a
// non-retryable rejection from the provider, 503 with Retry-After for a
// retryable provider failure or an open circuit breaker, 504 for a timeout,
// 500 for anything else (a cache-internal failure).
func classifyTranslationError(err error) (status int, code string, retryAfter string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, errCodeTimeout, ""
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "circuit breaker open"):
		return http.StatusServiceUnavailable, errCodeExternalServer, "5"
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "context canceled"):
		return http.StatusGatewayTimeout, errCodeTimeout, ""
	case strings.Contains(msg, "status 502"), strings.Contains(msg, "status 503"), strings.Contains(msg, "status 504"):
		return http.StatusServiceUnavailable, errCodeExternalServer, "1"
	case strings.Contains(msg, "provider returned status"):
		return http.StatusBadGateway, errCodeExternalClient, ""
	case strings.Contains(msg, "translator:"):
		return http.StatusBadGateway, errCodeExternalClient, ""
	default:
		return http.StatusInternalServerError, errCodeInternal, ""
	}
}
