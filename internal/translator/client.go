// Package translator wraps an OpenAI-compatible chat-completion endpoint as
// the external translation provider the cache core calls out to on a miss.
// It carries a circuit breaker and exponential-backoff retry so a flaky or
// overloaded provider degrades the service rather than stalling it.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/onionmixer/transbasket/internal/observability"
)

// circuitState is the breaker's two-state machine: closed (normal) or open
// (requests rejected immediately until ResetCircuit is called).
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
)

// Config controls the client's endpoint, credentials, and failure handling.
type Config struct {
	// BaseURL is the OpenAI-compatible API root, e.g. "http://localhost:8000/v1".
	BaseURL string
	// APIKey is sent as a Bearer token when non-empty.
	APIKey string
	// Model is the chat-completion model name.
	Model string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// MaxElapsedTime bounds the total time spent retrying one translation,
	// across every backoff attempt.
	MaxElapsedTime time.Duration

	// CircuitBreaker enables the consecutive-failure trip below.
	CircuitBreaker bool
	// MaxLatency is the per-call latency above which a successful call still
	// counts toward the failure threshold — a slow provider is treated the
	// same as a failing one.
	MaxLatency time.Duration
	// FailureThreshold is the number of consecutive failures (or
	// over-latency successes) that opens the circuit.
	FailureThreshold int
}

// chatMessage is one entry in an OpenAI-style chat-completion request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Client calls an OpenAI-compatible /chat/completions endpoint to translate
// a single piece of text.
type Client struct {
	mu               sync.RWMutex
	cfg              Config
	httpClient       *http.Client
	logger           zerolog.Logger
	consecutiveFails int
	state            circuitState
	lastFailure      time.Time
}

// New builds a Client against cfg.
func New(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "translator").Logger(),
		state:      circuitClosed,
	}
}

// Translate requests a translation of text from fromLang to toLang. The
// circuit breaker is checked before any network attempt, and the HTTP call
// is retried with exponential backoff for transient transport errors.
func (c *Client) Translate(ctx context.Context, fromLang, toLang, text string) (string, error) {
	if err := c.checkCircuit(); err != nil {
		return "", err
	}

	langPair := fromLang + "-" + toLang
	perf := observability.NewPerformanceLog(c.logger, "translate")

	prompt := fmt.Sprintf("Translate the following text from %s to %s. Respond with only the translation, no commentary.\n\n%s", fromLang, toLang, text)

	var result string
	bo := backoff.NewExponentialBackOff()
	if c.cfg.MaxElapsedTime > 0 {
		bo.MaxElapsedTime = c.cfg.MaxElapsedTime
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		start := time.Now()
		translated, err := c.doRequest(ctx, prompt)
		latency := time.Since(start)

		if err != nil {
			c.recordFailure()
			if isRetryableError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		c.recordLatency(latency)
		result = translated
		return nil
	}, backoff.WithContext(bo, ctx))

	event := &observability.LogEvent{Logger: c.logger, Action: "translate", Entity: "lang_pair", ID: langPair}
	if err != nil {
		perf.EndWithError(err)
		event.Context = observability.SanitizeForLog(map[string]interface{}{
			"api_key":  c.cfg.APIKey,
			"model":    c.cfg.Model,
			"attempts": attempts,
		})
		event.Error(err, "translation request failed")
		return "", fmt.Errorf("translator: %w", err)
	}

	perf.EndWithContext(map[string]interface{}{"attempts": attempts})
	if attempts > 1 {
		event.Success("translation succeeded after retry")
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, prompt string) (string, error) {
	perf := observability.NewPerformanceLog(c.logger, "provider_request")

	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}

	perf.End()
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// isRetryableError reports whether err looks like a transient network
// hiccup worth retrying, as opposed to a permanent rejection (bad request,
// auth failure, malformed response).
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"eof",
		"timeout",
		"status 502",
		"status 503",
		"status 504",
	} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func (c *Client) checkCircuit() error {
	if !c.cfg.CircuitBreaker {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == circuitOpen {
		return fmt.Errorf("translator: circuit breaker open after %d consecutive failures", c.cfg.FailureThreshold)
	}
	return nil
}

func (c *Client) recordFailure() {
	if !c.cfg.CircuitBreaker {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFails++
	c.lastFailure = time.Now()
	c.tripIfThresholdReached()
}

func (c *Client) recordLatency(latency time.Duration) {
	if !c.cfg.CircuitBreaker {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxLatency > 0 && latency > c.cfg.MaxLatency {
		c.consecutiveFails++
		event := &observability.LogEvent{
			Logger:  c.logger,
			Action:  "translate",
			Entity:  "provider",
			ID:      c.cfg.BaseURL,
			Context: map[string]interface{}{"latency_ms": latency.Milliseconds(), "max_latency_ms": c.cfg.MaxLatency.Milliseconds()},
		}
		event.Warning("translation latency exceeded threshold")
		c.tripIfThresholdReached()
		return
	}
	c.consecutiveFails = 0
}

// tripIfThresholdReached must be called with c.mu held.
func (c *Client) tripIfThresholdReached() {
	if c.consecutiveFails >= c.cfg.FailureThreshold {
		c.state = circuitOpen
		c.logger.Warn().Int("consecutive_failures", c.consecutiveFails).Msg("circuit breaker opened")
	}
}

// ResetCircuit manually closes the breaker, for operator recovery after a
// provider outage is confirmed resolved.
func (c *Client) ResetCircuit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = circuitClosed
	c.consecutiveFails = 0
	c.logger.Info().Msg("circuit breaker reset")
}

// IsCircuitOpen reports the breaker's current state.
func (c *Client) IsCircuitOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == circuitOpen
}
