package cachecore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onionmixer/transbasket/internal/observability"
)

// Prometheus metrics register globally; every test in this package shares
// one *observability.Metrics instance to avoid duplicate-registration panics.
var (
	testMetrics     *observability.Metrics
	testMetricsOnce sync.Once
)

func getTestMetrics() *observability.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = observability.NewMetrics()
	})
	return testMetrics
}

// fakeBackend is a minimal in-memory Backend used to exercise the façade's
// locking and admission logic in isolation from any real storage engine.
type fakeBackend struct {
	mu      sync.Mutex
	entries map[string]Entry
	nextID  int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{entries: make(map[string]Entry), nextID: 1}
}

func (f *fakeBackend) Lookup(from, to, text string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[Hash(from, to, text)]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeBackend) Add(from, to, text, translation string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := Hash(from, to, text)
	if _, ok := f.entries[hash]; ok {
		return Entry{}, ErrAlreadyExists
	}
	now := time.Now().Unix()
	e := Entry{ID: f.nextID, Hash: hash, FromLang: from, ToLang: to, SourceText: text, TranslatedText: translation, Count: 1, CreatedAt: now, LastUsed: now}
	f.nextID++
	f.entries[hash] = e
	return e, nil
}

func (f *fakeBackend) UpdateCount(hash string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[hash]
	if !ok {
		return Entry{}, ErrNotFound
	}
	e.Count++
	e.LastUsed = time.Now().Unix()
	f.entries[hash] = e
	return e, nil
}

func (f *fakeBackend) UpdateTranslation(hash, translation string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[hash]
	if !ok {
		return Entry{}, ErrNotFound
	}
	e.TranslatedText = translation
	e.Count = 1
	e.LastUsed = time.Now().Unix()
	f.entries[hash] = e
	return e, nil
}

func (f *fakeBackend) Save() error { return nil }

func (f *fakeBackend) Cleanup(days int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	removed := 0
	for k, e := range f.entries {
		if e.LastUsed < cutoff {
			delete(f.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeBackend) Stats(threshold, days int) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	var s Stats
	for _, e := range f.entries {
		s.Total++
		if e.Count >= threshold {
			s.Active++
		}
		if e.LastUsed < cutoff {
			s.Expired++
		}
	}
	return s, nil
}

func (f *fakeBackend) Close() error { return nil }

func newTestCache(threshold int) *Cache {
	return New(newFakeBackend(), KindText, threshold, zerolog.Nop(), nil)
}

func TestReconcile_FirstTimeTranslation(t *testing.T) {
	c := newTestCache(5)
	calls := 0

	translated, cached, err := c.Reconcile("en", "ko", "hello", func() (string, error) {
		calls++
		return "안녕하세요", nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "안녕하세요", translated)
	assert.Equal(t, 1, calls)

	entry, ok, err := c.Lookup("en", "ko", "hello")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, entry.Count)
}

func TestReconcile_ConfirmationMarchToThreshold(t *testing.T) {
	c := newTestCache(3)
	external := func() (string, error) { return "bonjour", nil }

	for i := 1; i <= 3; i++ {
		translated, cached, err := c.Reconcile("en", "fr", "hello", external)
		require.NoError(t, err)
		assert.Equal(t, "bonjour", translated)
		assert.False(t, cached, "iteration %d should still be below threshold", i)
	}

	// Fourth call should now hit the threshold and skip external entirely.
	calls := 0
	translated, cached, err := c.Reconcile("en", "fr", "hello", func() (string, error) {
		calls++
		return "SHOULD NOT BE CALLED", nil
	})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "bonjour", translated)
	assert.Equal(t, 0, calls)
}

func TestReconcile_DivergentTranslationResetsCount(t *testing.T) {
	c := newTestCache(10)

	_, _, err := c.Reconcile("en", "de", "good night", func() (string, error) { return "gute Nacht", nil })
	require.NoError(t, err)
	_, _, err = c.Reconcile("en", "de", "good night", func() (string, error) { return "gute Nacht", nil })
	require.NoError(t, err)

	entry, ok, err := c.Lookup("en", "de", "good night")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, entry.Count)

	_, _, err = c.Reconcile("en", "de", "good night", func() (string, error) { return "schlaf gut", nil })
	require.NoError(t, err)

	entry, ok, err = c.Lookup("en", "de", "good night")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, entry.Count)
	assert.Equal(t, "schlaf gut", entry.TranslatedText)
}

func TestReconcile_ExternalErrorPropagates(t *testing.T) {
	c := newTestCache(5)
	wantErr := fmt.Errorf("upstream unavailable")

	_, cached, err := c.Reconcile("en", "ko", "hello", func() (string, error) {
		return "", wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, cached)

	_, ok, err := c.Lookup("en", "ko", "hello")
	require.NoError(t, err)
	assert.False(t, ok, "a failed external call must not leave a partial entry behind")
}

func TestReconcile_ConcurrentRequestsConverge(t *testing.T) {
	c := newTestCache(100) // keep every request below the admission threshold

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _, err := c.Reconcile("en", "ko", "concurrent phrase", func() (string, error) {
				return "동시성 문구", nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entry, ok, err := c.Lookup("en", "ko", "concurrent phrase")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "동시성 문구", entry.TranslatedText)
	assert.Equal(t, workers, entry.Count)
}

func TestStats_ReportsActiveAndExpired(t *testing.T) {
	c := newTestCache(2)
	_, _, err := c.Reconcile("en", "ko", "a", func() (string, error) { return "a-ko", nil })
	require.NoError(t, err)
	_, _, err = c.Reconcile("en", "ko", "a", func() (string, error) { return "a-ko", nil })
	require.NoError(t, err)

	stats, err := c.Stats(30)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 0, stats.Expired)
}

func TestReconcile_RecordsHitAndMissMetrics(t *testing.T) {
	metrics := getTestMetrics()
	c := New(newFakeBackend(), KindText, 1, zerolog.Nop(), metrics)

	missesBefore := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues(string(KindText)))
	_, cached, err := c.Reconcile("en", "ko", "metric phrase", func() (string, error) { return "지표 문구", nil })
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, missesBefore+1, testutil.ToFloat64(metrics.CacheMisses.WithLabelValues(string(KindText))))

	hitsBefore := testutil.ToFloat64(metrics.CacheHits.WithLabelValues(string(KindText)))
	_, cached, err = c.Reconcile("en", "ko", "metric phrase", func() (string, error) {
		t.Fatal("external should not be called on a confirmed hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(metrics.CacheHits.WithLabelValues(string(KindText))))
}

func TestCleanup_RecordsEvictionMetric(t *testing.T) {
	metrics := getTestMetrics()
	c := New(newFakeBackend(), KindText, 2, zerolog.Nop(), metrics)

	_, _, err := c.Reconcile("en", "ko", "stale phrase", func() (string, error) { return "오래된 문구", nil })
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.CacheEvictions.WithLabelValues(string(KindText)))
	removed, err := c.Cleanup(-1)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CacheEvictions.WithLabelValues(string(KindText))))
}

func TestStats_RecordsSizeGauge(t *testing.T) {
	metrics := getTestMetrics()
	c := New(newFakeBackend(), KindText, 2, zerolog.Nop(), metrics)

	_, _, err := c.Reconcile("en", "ko", "gauge phrase", func() (string, error) { return "게이지 문구", nil })
	require.NoError(t, err)

	_, err = c.Stats(30)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheSize.WithLabelValues(string(KindText))))
}
