package migrate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onionmixer/transbasket/internal/cachecore"
	"github.com/onionmixer/transbasket/internal/cachecore/sqlitebackend"
	"github.com/onionmixer/transbasket/internal/cachecore/textbackend"
	"github.com/onionmixer/transbasket/internal/observability"
)

func TestRun_TextToSQLitePreservesIdentityFieldsOnly(t *testing.T) {
	logger := observability.NewNopLogger()

	source, err := textbackend.Open(filepath.Join(t.TempDir(), "source.jsonl"), logger)
	require.NoError(t, err)
	defer source.Close()

	seed := []struct{ from, to, text, translated string }{
		{"eng", "kor", "hello", "안녕하세요"},
		{"eng", "kor", "goodbye", "안녕히 가세요"},
		{"kor", "eng", "감사합니다", "thank you"},
	}
	for _, s := range seed {
		_, err := source.Add(s.from, s.to, s.text, s.translated)
		require.NoError(t, err)
	}
	// Bump count on one entry so we can assert it is NOT carried over.
	entry, err := source.Lookup("eng", "kor", "hello")
	require.NoError(t, err)
	_, err = source.UpdateCount(entry.Hash)
	require.NoError(t, err)

	dest, err := sqlitebackend.Open(sqlitebackend.DefaultConfig(filepath.Join(t.TempDir(), "dest.db")), logger, nil)
	require.NoError(t, err)
	defer dest.Close()

	result, err := Run(source, dest, logger, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Migrated)
	assert.Equal(t, 0, result.Failed)

	migratedEntries, err := dest.All()
	require.NoError(t, err)
	require.Len(t, migratedEntries, 3)

	for _, e := range migratedEntries {
		assert.Equal(t, 1, e.Count, "migrated entries start fresh, never carrying over source count")
	}

	got, err := dest.Lookup("eng", "kor", "hello")
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요", got.TranslatedText)
}

func TestRun_SQLiteToTextRoundTripPreservesEntryMultiset(t *testing.T) {
	logger := observability.NewNopLogger()

	source, err := sqlitebackend.Open(sqlitebackend.DefaultConfig(filepath.Join(t.TempDir(), "source.db")), logger, nil)
	require.NoError(t, err)
	defer source.Close()

	_, err = source.Add("eng", "jpn", "hello", "こんにちは")
	require.NoError(t, err)
	_, err = source.Add("jpn", "eng", "ありがとう", "thank you")
	require.NoError(t, err)

	dest, err := textbackend.Open(filepath.Join(t.TempDir(), "dest.jsonl"), logger)
	require.NoError(t, err)
	defer dest.Close()

	result, err := Run(source, dest, logger, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Migrated)
	assert.Equal(t, 0, result.Failed)

	entries, err := dest.All()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	pairs := make(map[string]string, len(entries))
	for _, e := range entries {
		pairs[e.FromLang+"|"+e.ToLang+"|"+e.SourceText] = e.TranslatedText
	}
	assert.Equal(t, "こんにちは", pairs["eng|jpn|hello"])
	assert.Equal(t, "thank you", pairs["jpn|eng|ありがとう"])
}

func TestRun_RerunningIsIdempotent(t *testing.T) {
	logger := observability.NewNopLogger()

	source, err := textbackend.Open(filepath.Join(t.TempDir(), "source.jsonl"), logger)
	require.NoError(t, err)
	defer source.Close()
	_, err = source.Add("eng", "kor", "hello", "안녕하세요")
	require.NoError(t, err)

	dest, err := textbackend.Open(filepath.Join(t.TempDir(), "dest.jsonl"), logger)
	require.NoError(t, err)
	defer dest.Close()

	_, err = Run(source, dest, logger, false)
	require.NoError(t, err)

	result, err := Run(source, dest, logger, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated, "an already-present entry counts as migrated, not failed")
	assert.Equal(t, 0, result.Failed)

	entries, err := dest.All()
	require.NoError(t, err)
	assert.Len(t, entries, 1, "rerunning must not duplicate entries")
}

func TestRun_SourceWithoutEnumerableFails(t *testing.T) {
	logger := observability.NewNopLogger()
	dest, err := textbackend.Open(filepath.Join(t.TempDir(), "dest.jsonl"), logger)
	require.NoError(t, err)
	defer dest.Close()

	_, err = Run(nonEnumerableBackend{}, dest, logger, false)
	assert.Error(t, err)
}

// nonEnumerableBackend satisfies cachecore.Backend but not cachecore.Enumerable,
// exercising Run's type-assertion failure path.
type nonEnumerableBackend struct{}

func (nonEnumerableBackend) Lookup(from, to, text string) (cachecore.Entry, error) {
	return cachecore.Entry{}, cachecore.ErrNotFound
}
func (nonEnumerableBackend) Add(from, to, text, translation string) (cachecore.Entry, error) {
	return cachecore.Entry{}, nil
}
func (nonEnumerableBackend) UpdateCount(hash string) (cachecore.Entry, error) {
	return cachecore.Entry{}, nil
}
func (nonEnumerableBackend) UpdateTranslation(hash, translation string) (cachecore.Entry, error) {
	return cachecore.Entry{}, nil
}
func (nonEnumerableBackend) Save() error                 { return nil }
func (nonEnumerableBackend) Cleanup(days int) (int, error) { return 0, nil }
func (nonEnumerableBackend) Stats(threshold, days int) (cachecore.Stats, error) {
	return cachecore.Stats{}, nil
}
func (nonEnumerableBackend) Close() error { return nil }
