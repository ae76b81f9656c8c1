// Package maintainer runs the background save/cleanup loop that keeps a
// cache façade durable and bounded without making any request handler wait
// on disk or database I/O.
package maintainer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// saver is the subset of *cachecore.Cache the maintainer depends on. Taking
// an interface here (rather than the concrete type) keeps this package
// testable without a real backend.
type saver interface {
	Save() error
	Cleanup(days int) (int, error)
}

const saveInterval = 5 * time.Second

// minCleanupInterval is the floor on how often Cleanup runs regardless of
// how small CleanupDays is configured — cleanup is never allowed to thrash.
const minCleanupInterval = 1 * time.Hour

// Config controls the maintainer's cadence.
type Config struct {
	// CleanupEnabled turns the periodic Cleanup call on or off. Cleanup can
	// be disabled while Save keeps running.
	CleanupEnabled bool
	// CleanupDays is the max-age passed to Cleanup. The cleanup interval
	// itself is derived from this (see cleanupInterval) rather than taken
	// directly, so a short retention window doesn't imply a tight poll loop.
	CleanupDays int
}

// cleanupInterval implements max(1h, days*24h/10): a cache configured to
// retain entries for 30 days cleans up roughly ten times over that
// retention window, never more often than once an hour.
func cleanupInterval(days int) time.Duration {
	derived := time.Duration(days) * 24 * time.Hour / 10
	if derived < minCleanupInterval {
		return minCleanupInterval
	}
	return derived
}

// state tracks the maintainer's life cycle: Created -> Running -> Draining -> Joined.
type state int32

const (
	stateCreated state = iota
	stateRunning
	stateDraining
	stateJoined
)

// Maintainer owns the cache's background save and cleanup cadence. It runs
// in its own goroutine from Start until Stop is called; Stop blocks until
// the loop has exited and performed one final save.
type Maintainer struct {
	cache  saver
	cfg    Config
	logger zerolog.Logger

	mu    sync.Mutex
	state state
	done  chan struct{}
	wg    sync.WaitGroup
}

// New builds a Maintainer for cache. Call Start to begin the loop.
func New(cache saver, cfg Config, logger zerolog.Logger) *Maintainer {
	return &Maintainer{
		cache:  cache,
		cfg:    cfg,
		logger: logger.With().Str("component", "maintainer").Logger(),
		state:  stateCreated,
	}
}

// Start launches the background loop. Calling Start twice is a no-op.
func (m *Maintainer) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateCreated {
		return
	}
	m.state = stateRunning
	m.done = make(chan struct{})

	m.wg.Add(1)
	go m.run()
}

func (m *Maintainer) run() {
	defer m.wg.Done()

	saveTicker := time.NewTicker(saveInterval)
	defer saveTicker.Stop()

	var cleanupTicker *time.Ticker
	var cleanupC <-chan time.Time
	if m.cfg.CleanupEnabled {
		cleanupTicker = time.NewTicker(cleanupInterval(m.cfg.CleanupDays))
		defer cleanupTicker.Stop()
		cleanupC = cleanupTicker.C
	}

	for {
		select {
		case <-m.done:
			if err := m.cache.Save(); err != nil {
				m.logger.Error().Err(err).Msg("final save failed")
			}
			return
		case <-saveTicker.C:
			if err := m.cache.Save(); err != nil {
				m.logger.Error().Err(err).Msg("periodic save failed")
			}
		case <-cleanupC:
			removed, err := m.cache.Cleanup(m.cfg.CleanupDays)
			if err != nil {
				m.logger.Error().Err(err).Msg("periodic cleanup failed")
				continue
			}
			if removed > 0 {
				m.logger.Info().Int("removed", removed).Msg("cleanup removed stale entries")
			}
		}
	}
}

// Stop signals the loop to drain, waits for it to perform a final save and
// exit, then marks the maintainer Joined. Safe to call once; a second call
// is a no-op.
func (m *Maintainer) Stop() {
	m.mu.Lock()
	if m.state != stateRunning {
		m.mu.Unlock()
		return
	}
	m.state = stateDraining
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	m.state = stateJoined
	m.mu.Unlock()
}
