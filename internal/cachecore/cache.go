package cachecore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/onionmixer/transbasket/internal/observability"
)

// Cache is the backend-agnostic façade. It owns a Backend and serializes
// every access to it through a single reader/writer lock: Lookup, Save, and
// Stats take the lock in shared mode; Add, UpdateCount, UpdateTranslation,
// and Cleanup take it exclusively. No backend operation is ever invoked
// without the lock held, and the façade lock is always innermost — it never
// calls back out into a handler or the maintainer.
type Cache struct {
	mu        sync.RWMutex
	backend   Backend
	kind      Kind
	threshold int
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// New wraps backend behind a façade enforcing the given admission threshold.
// metrics may be nil, in which case the façade records nothing.
func New(backend Backend, kind Kind, threshold int, logger zerolog.Logger, metrics *observability.Metrics) *Cache {
	if threshold < 1 {
		threshold = 1
	}
	return &Cache{
		backend:   backend,
		kind:      kind,
		threshold: threshold,
		logger:    logger.With().Str("component", "cache").Str("backend", string(kind)).Logger(),
		metrics:   metrics,
	}
}

// Kind reports the configured backend kind, for logging and /health.
func (c *Cache) Kind() Kind { return c.kind }

// Lookup returns a copy of the entry for (from, to, text), or ok=false if
// absent. It does not touch count or apply the admission threshold — callers
// wanting the admission-gated read path should use Reconcile.
func (c *Cache) Lookup(from, to, text string) (entry Entry, ok bool, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, err = c.backend.Lookup(from, to, text)
	if errors.Is(err, ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cachecore: lookup: %w", err)
	}
	return entry, true, nil
}

// Stats reports current occupancy using the façade's configured threshold
// and the caller-supplied cleanup age.
func (c *Cache) Stats(days int) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats, err := c.backend.Stats(c.threshold, days)
	if err != nil {
		return Stats{}, fmt.Errorf("cachecore: stats: %w", err)
	}
	if c.metrics != nil {
		c.metrics.CacheSize.WithLabelValues(string(c.kind)).Set(float64(stats.Total))
	}
	return stats, nil
}

// Save flushes the backend to durable storage. Called periodically by the
// maintainer and once more at shutdown.
func (c *Cache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.backend.Save(); err != nil {
		return fmt.Errorf("cachecore: save: %w", err)
	}
	return nil
}

// Cleanup removes entries whose last_used is older than days and returns the
// number removed.
func (c *Cache) Cleanup(days int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, err := c.backend.Cleanup(days)
	if err != nil {
		return 0, fmt.Errorf("cachecore: cleanup: %w", err)
	}
	if c.metrics != nil && removed > 0 {
		c.metrics.CacheEvictions.WithLabelValues(string(c.kind)).Add(float64(removed))
	}
	return removed, nil
}

// Close releases the backend's resources. The façade should not be used
// afterward.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.Close(); err != nil {
		return fmt.Errorf("cachecore: close: %w", err)
	}
	return nil
}

// Reconcile implements the confirm-by-repetition admission policy (§4.6):
//
//  1. Look up (from, to, text) under a read lock.
//  2. If found and count >= threshold, bump count under a write lock and
//     return the stored translation without calling external. Cache hit,
//     no external call.
//  3. Otherwise call external with NO cache lock held — the façade lock is
//     always released before an outbound call and reacquired only for the
//     reconciliation step that follows.
//  4. Reconcile the external result against the cache under a fresh write
//     lock: add if absent, bump count if the external result matches the
//     stored translation, or replace (resetting count to 1) if it diverges.
//
// The second lookup in step 4 is deliberate: two concurrent requests for the
// same key may both miss in step 1 and both call external; their
// reconciliations then serialize on the write lock and the final state is
// well-defined (P12).
func (c *Cache) Reconcile(from, to, text string, external func() (string, error)) (translated string, cached bool, err error) {
	c.mu.RLock()
	entry, lookupErr := c.backend.Lookup(from, to, text)
	c.mu.RUnlock()

	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return "", false, fmt.Errorf("cachecore: lookup: %w", lookupErr)
	}

	if lookupErr == nil && entry.Count >= c.threshold {
		c.mu.Lock()
		updated, err := c.backend.UpdateCount(entry.Hash)
		c.mu.Unlock()
		if err != nil {
			return "", false, fmt.Errorf("cachecore: update_count: %w", err)
		}
		if c.metrics != nil {
			c.metrics.CacheHits.WithLabelValues(string(c.kind)).Inc()
		}
		c.logger.Debug().Str("hash", updated.Hash).Int("count", updated.Count).Msg("cache hit, confirmed")
		return updated.TranslatedText, true, nil
	}

	if c.metrics != nil {
		c.metrics.CacheMisses.WithLabelValues(string(c.kind)).Inc()
	}

	translated, err = external()
	if err != nil {
		return "", false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, lookupErr := c.backend.Lookup(from, to, text)
	switch {
	case errors.Is(lookupErr, ErrNotFound):
		if _, err := c.backend.Add(from, to, text, translated); err != nil {
			return "", false, fmt.Errorf("cachecore: add: %w", err)
		}
		c.logger.Debug().Str("from", from).Str("to", to).Msg("cache miss, inserted")
	case lookupErr != nil:
		return "", false, fmt.Errorf("cachecore: lookup: %w", lookupErr)
	case current.TranslatedText == translated:
		if _, err := c.backend.UpdateCount(current.Hash); err != nil {
			return "", false, fmt.Errorf("cachecore: update_count: %w", err)
		}
	default:
		if _, err := c.backend.UpdateTranslation(current.Hash, translated); err != nil {
			return "", false, fmt.Errorf("cachecore: update_translation: %w", err)
		}
		c.logger.Warn().Str("hash", current.Hash).Msg("translation diverged, count reset")
	}

	return translated, false, nil
}
