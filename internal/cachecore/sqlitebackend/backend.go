// Package sqlitebackend implements the embedded-database translation-cache
// engine. Every entry is a row in trans_cache; durability is transparent
// (each write commits immediately under WAL), so Save is a no-op here — the
// counterpart to the text backend's explicit flush-on-interval.
package sqlitebackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/onionmixer/transbasket/internal/cachecore"
	"github.com/onionmixer/transbasket/internal/observability"
)

// Backend stores cache entries in a SQLite database readable by the stock
// sqlite3 CLI. Prepared statements are held for the lifetime of the backend.
// Lookup and Stats can run concurrently (the façade calls them under its
// shared read lock); *sql.Stmt is safe for that, and the single pooled
// connection serializes execution.
type Backend struct {
	db      *db
	logger  zerolog.Logger
	metrics *observability.Metrics

	stmtLookup            *sql.Stmt
	stmtInsert            *sql.Stmt
	stmtUpdateCount       *sql.Stmt
	stmtUpdateTranslation *sql.Stmt
	stmtDeleteOlderThan   *sql.Stmt
}

// Open opens (creating if necessary) the database at cfg.Path, applies
// pending migrations, and prepares the statements the backend reuses on
// every call. metrics may be nil, in which case query duration and error
// counts are not recorded.
func Open(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) (*Backend, error) {
	logger = logger.With().Str("component", "sqlitebackend").Str("path", cfg.Path).Logger()

	conn, err := openDB(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := newMigrator(conn, logger).migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	b := &Backend{db: conn, logger: logger, metrics: metrics}
	if err := b.prepareStatements(); err != nil {
		conn.Close()
		return nil, err
	}

	return b, nil
}

// recordQuery observes a single backend operation's duration and, when err is
// a genuine failure (not a cache-level not-found/already-exists signal),
// increments the error counter. No-op if the backend was opened without a
// *observability.Metrics.
func (b *Backend) recordQuery(operation string, start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	b.metrics.DBQueryDuration.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil && !errors.Is(err, cachecore.ErrNotFound) && !errors.Is(err, cachecore.ErrAlreadyExists) {
		b.metrics.DBErrors.WithLabelValues(operation).Inc()
	}
}

func (b *Backend) prepareStatements() error {
	var err error

	b.stmtLookup, err = b.db.conn.Prepare(`
		SELECT id, hash, from_lang, to_lang, source_text, translated_text, count, created_at, last_used
		FROM trans_cache WHERE hash = ?`)
	if err != nil {
		return fmt.Errorf("sqlitebackend: prepare lookup: %w", err)
	}

	b.stmtInsert, err = b.db.conn.Prepare(`
		INSERT INTO trans_cache (hash, from_lang, to_lang, source_text, translated_text, count, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlitebackend: prepare insert: %w", err)
	}

	b.stmtUpdateCount, err = b.db.conn.Prepare(`
		UPDATE trans_cache SET count = count + 1, last_used = ? WHERE hash = ?`)
	if err != nil {
		return fmt.Errorf("sqlitebackend: prepare update_count: %w", err)
	}

	b.stmtUpdateTranslation, err = b.db.conn.Prepare(`
		UPDATE trans_cache SET translated_text = ?, count = 1, last_used = ? WHERE hash = ?`)
	if err != nil {
		return fmt.Errorf("sqlitebackend: prepare update_translation: %w", err)
	}

	b.stmtDeleteOlderThan, err = b.db.conn.Prepare(`DELETE FROM trans_cache WHERE last_used < ?`)
	if err != nil {
		return fmt.Errorf("sqlitebackend: prepare cleanup: %w", err)
	}

	return nil
}

func scanEntry(row interface{ Scan(...any) error }) (cachecore.Entry, error) {
	var e cachecore.Entry
	err := row.Scan(&e.ID, &e.Hash, &e.FromLang, &e.ToLang, &e.SourceText, &e.TranslatedText, &e.Count, &e.CreatedAt, &e.LastUsed)
	return e, err
}

// Lookup implements cachecore.Backend.
func (b *Backend) Lookup(from, to, text string) (entry cachecore.Entry, err error) {
	start := time.Now()
	defer func() { b.recordQuery("lookup", start, err) }()

	hash := cachecore.Hash(from, to, text)
	entry, err = scanEntry(b.stmtLookup.QueryRow(hash))
	if errors.Is(err, sql.ErrNoRows) {
		return cachecore.Entry{}, cachecore.ErrNotFound
	}
	if err != nil {
		return cachecore.Entry{}, fmt.Errorf("sqlitebackend: lookup: %w", err)
	}
	return entry, nil
}

// Add implements cachecore.Backend.
func (b *Backend) Add(from, to, text, translation string) (entry cachecore.Entry, err error) {
	start := time.Now()
	defer func() { b.recordQuery("add", start, err) }()

	hash := cachecore.Hash(from, to, text)
	now := time.Now().Unix()

	result, err := b.stmtInsert.Exec(hash, from, to, text, translation, now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return cachecore.Entry{}, cachecore.ErrAlreadyExists
		}
		return cachecore.Entry{}, fmt.Errorf("sqlitebackend: add: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return cachecore.Entry{}, fmt.Errorf("sqlitebackend: add: %w", err)
	}

	return cachecore.Entry{
		ID:             id,
		Hash:           hash,
		FromLang:       from,
		ToLang:         to,
		SourceText:     text,
		TranslatedText: translation,
		Count:          1,
		CreatedAt:      now,
		LastUsed:       now,
	}, nil
}

// UpdateCount implements cachecore.Backend.
func (b *Backend) UpdateCount(hash string) (entry cachecore.Entry, err error) {
	start := time.Now()
	defer func() { b.recordQuery("update_count", start, err) }()

	now := time.Now().Unix()
	result, err := b.stmtUpdateCount.Exec(now, hash)
	if err != nil {
		return cachecore.Entry{}, fmt.Errorf("sqlitebackend: update_count: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return cachecore.Entry{}, cachecore.ErrNotFound
	}
	entry, err = scanEntry(b.stmtLookup.QueryRow(hash))
	return entry, err
}

// UpdateTranslation implements cachecore.Backend.
func (b *Backend) UpdateTranslation(hash, translation string) (entry cachecore.Entry, err error) {
	start := time.Now()
	defer func() { b.recordQuery("update_translation", start, err) }()

	now := time.Now().Unix()
	result, err := b.stmtUpdateTranslation.Exec(translation, now, hash)
	if err != nil {
		return cachecore.Entry{}, fmt.Errorf("sqlitebackend: update_translation: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return cachecore.Entry{}, cachecore.ErrNotFound
	}
	entry, err = scanEntry(b.stmtLookup.QueryRow(hash))
	return entry, err
}

// Save is a no-op: every statement above commits as it executes under WAL.
func (b *Backend) Save() error { return nil }

// Cleanup implements cachecore.Backend.
func (b *Backend) Cleanup(days int) (removed int, err error) {
	start := time.Now()
	defer func() { b.recordQuery("cleanup", start, err) }()

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	result, err := b.stmtDeleteOlderThan.Exec(cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlitebackend: cleanup: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlitebackend: cleanup: %w", err)
	}
	return int(affected), nil
}

// Stats implements cachecore.Backend.
func (b *Backend) Stats(threshold, days int) (stats cachecore.Stats, err error) {
	start := time.Now()
	defer func() { b.recordQuery("stats", start, err) }()

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

	row := b.db.conn.QueryRow("SELECT COUNT(*) FROM trans_cache")
	if err := row.Scan(&stats.Total); err != nil {
		return cachecore.Stats{}, fmt.Errorf("sqlitebackend: stats total: %w", err)
	}

	row = b.db.conn.QueryRow("SELECT COUNT(*) FROM trans_cache WHERE count >= ?", threshold)
	if err := row.Scan(&stats.Active); err != nil {
		return cachecore.Stats{}, fmt.Errorf("sqlitebackend: stats active: %w", err)
	}

	row = b.db.conn.QueryRow("SELECT COUNT(*) FROM trans_cache WHERE last_used < ?", cutoff)
	if err := row.Scan(&stats.Expired); err != nil {
		return cachecore.Stats{}, fmt.Errorf("sqlitebackend: stats expired: %w", err)
	}

	return stats, nil
}

// All implements cachecore.Enumerable, used only by the offline migration
// tool. It is not among the prepared statements since it runs at most once
// per process lifetime.
func (b *Backend) All() ([]cachecore.Entry, error) {
	rows, err := b.db.conn.Query(`
		SELECT id, hash, from_lang, to_lang, source_text, translated_text, count, created_at, last_used
		FROM trans_cache ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlitebackend: all: %w", err)
	}
	defer rows.Close()

	var entries []cachecore.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitebackend: all: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitebackend: all: %w", err)
	}
	return entries, nil
}

// Ping reports whether the underlying connection is reachable, for wiring
// into observability.DatabaseHealthCheck.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.conn.PingContext(ctx)
}

// Close releases the prepared statements and the underlying connection.
func (b *Backend) Close() error {
	for _, stmt := range []*sql.Stmt{b.stmtLookup, b.stmtInsert, b.stmtUpdateCount, b.stmtUpdateTranslation, b.stmtDeleteOlderThan} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return b.db.Close()
}
