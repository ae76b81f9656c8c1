// Package textbackend implements the flat-file translation-cache engine: a
// JSONL file loaded entirely into memory, mutated in place, and flushed back
// to disk on Save. It is the reference backend — the one that requires no
// external storage library, used for development and for small deployments where a
// database is overkill.
package textbackend

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onionmixer/transbasket/internal/cachecore"
)

// Backend is an in-memory JSONL-backed store. Every method holds mu for its
// whole body, so concurrent calls are safe; this matters because the
// cachecore façade runs Lookup, which updates last_used, under its shared
// read lock.
type Backend struct {
	mu      sync.Mutex // guards every field below
	path    string
	entries []cachecore.Entry
	byHash  map[string]int // hash -> index into entries
	nextID  int64
	dirty   bool
	logger  zerolog.Logger
}

// Open loads path if it exists, or starts empty so the first Save creates it.
func Open(path string, logger zerolog.Logger) (*Backend, error) {
	b := &Backend{
		path:   path,
		byHash: make(map[string]int),
		nextID: 1,
		logger: logger.With().Str("component", "textbackend").Str("path", path).Logger(),
	}

	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) load() error {
	file, err := os.Open(b.path)
	if os.IsNotExist(err) {
		b.logger.Info().Msg("no existing cache file, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("textbackend: open: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var entry cachecore.Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			b.logger.Warn().Int("line", lineNum).Err(err).Msg("skipping malformed cache line")
			continue
		}

		b.byHash[entry.Hash] = len(b.entries)
		b.entries = append(b.entries, entry)
		if entry.ID >= b.nextID {
			b.nextID = entry.ID + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("textbackend: scan: %w", err)
	}

	b.logger.Info().Int("entries", len(b.entries)).Msg("loaded cache file")
	return nil
}

// Lookup implements cachecore.Backend.
func (b *Backend) Lookup(from, to, text string) (cachecore.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hash := cachecore.Hash(from, to, text)
	idx, ok := b.byHash[hash]
	if !ok {
		return cachecore.Entry{}, cachecore.ErrNotFound
	}
	b.entries[idx].LastUsed = time.Now().Unix()
	b.dirty = true
	return b.entries[idx], nil
}

// Add implements cachecore.Backend.
func (b *Backend) Add(from, to, text, translation string) (cachecore.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hash := cachecore.Hash(from, to, text)
	if _, exists := b.byHash[hash]; exists {
		return cachecore.Entry{}, cachecore.ErrAlreadyExists
	}

	now := time.Now().Unix()
	entry := cachecore.Entry{
		ID:             b.nextID,
		Hash:           hash,
		FromLang:       from,
		ToLang:         to,
		SourceText:     text,
		TranslatedText: translation,
		Count:          1,
		CreatedAt:      now,
		LastUsed:       now,
	}
	b.nextID++

	b.byHash[hash] = len(b.entries)
	b.entries = append(b.entries, entry)
	b.dirty = true
	return entry, nil
}

// UpdateCount implements cachecore.Backend.
func (b *Backend) UpdateCount(hash string) (cachecore.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, ok := b.byHash[hash]
	if !ok {
		return cachecore.Entry{}, cachecore.ErrNotFound
	}
	b.entries[idx].Count++
	b.entries[idx].LastUsed = time.Now().Unix()
	b.dirty = true
	return b.entries[idx], nil
}

// UpdateTranslation implements cachecore.Backend.
func (b *Backend) UpdateTranslation(hash, translation string) (cachecore.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, ok := b.byHash[hash]
	if !ok {
		return cachecore.Entry{}, cachecore.ErrNotFound
	}
	b.entries[idx].TranslatedText = translation
	b.entries[idx].Count = 1
	b.entries[idx].LastUsed = time.Now().Unix()
	b.dirty = true
	return b.entries[idx], nil
}

// Save writes the current in-memory state to a temp file in the same
// directory, then renames it over path. The rename is atomic on every
// platform this backend targets, so a crash mid-write never corrupts the
// existing file — a durability upgrade over a plain truncate-and-rewrite
// that the testable properties do not depend on either way.
func (b *Backend) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty {
		return nil
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, ".transbasket-cache-*.tmp")
	if err != nil {
		return fmt.Errorf("textbackend: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	writer := bufio.NewWriter(tmp)
	for _, entry := range b.entries {
		line, err := json.Marshal(entry)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("textbackend: marshal: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			tmp.Close()
			return fmt.Errorf("textbackend: write: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			tmp.Close()
			return fmt.Errorf("textbackend: write: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("textbackend: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("textbackend: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		return fmt.Errorf("textbackend: rename: %w", err)
	}

	b.dirty = false
	b.logger.Debug().Int("entries", len(b.entries)).Msg("saved cache file")
	return nil
}

// Cleanup implements cachecore.Backend.
func (b *Backend) Cleanup(days int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

	kept := b.entries[:0]
	removed := 0
	for _, entry := range b.entries {
		if entry.LastUsed < cutoff {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	b.entries = kept

	b.byHash = make(map[string]int, len(b.entries))
	for i, entry := range b.entries {
		b.byHash[entry.Hash] = i
	}

	if removed > 0 {
		b.dirty = true
	}
	return removed, nil
}

// Stats implements cachecore.Backend.
func (b *Backend) Stats(threshold, days int) (cachecore.Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

	stats := cachecore.Stats{Total: len(b.entries)}
	for _, entry := range b.entries {
		if entry.Count >= threshold {
			stats.Active++
		}
		if entry.LastUsed < cutoff {
			stats.Expired++
		}
	}
	return stats, nil
}

// Close flushes any unsaved state. The JSONL backend holds no file handle
// between calls, so there is nothing else to release.
func (b *Backend) Close() error {
	return b.Save()
}

// All implements cachecore.Enumerable. Entries are always appended in
// increasing id order and never reordered in place, so a plain copy already
// satisfies the ascending-id contract.
func (b *Backend) All() ([]cachecore.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]cachecore.Entry, len(b.entries))
	copy(out, b.entries)
	return out, nil
}
