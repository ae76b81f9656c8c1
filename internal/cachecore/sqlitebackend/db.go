package sqlitebackend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure Go driver, no cgo
)

// Config controls how the SQLite engine opens and tunes its connection.
// Defaults mirror spec §4.4: WAL journaling, synchronous=NORMAL, an
// in-memory page cache sized around 2000 pages, and a 256 MiB mmap window.
type Config struct {
	Path         string
	WALMode      bool
	Synchronous  string // NORMAL, FULL, or OFF; NORMAL is safe under WAL
	CacheSizePgs int    // positive = pages, per SQLite's cache_size convention
	MMapSizeByte int64
	BusyTimeout  time.Duration
}

// DefaultConfig returns the §4.4 tuning defaults for a given database path.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		WALMode:      true,
		Synchronous:  "NORMAL",
		CacheSizePgs: 2000,
		MMapSizeByte: 256 * 1024 * 1024,
		BusyTimeout:  5 * time.Second,
	}
}

type db struct {
	conn   *sql.DB
	path   string
	logger zerolog.Logger
}

func openDB(cfg Config, logger zerolog.Logger) (*db, error) {
	dsn := buildDSN(cfg)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitebackend: open: %w", err)
	}

	// The pure-Go driver serializes writers internally; a single connection
	// avoids SQLITE_BUSY churn under the façade's already-exclusive write lock.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitebackend: ping: %w", err)
	}

	d := &db{conn: conn, path: cfg.Path, logger: logger}
	if err := d.applyPragmas(cfg); err != nil {
		conn.Close()
		return nil, err
	}

	return d, nil
}

func buildDSN(cfg Config) string {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc", cfg.Path)
	if cfg.BusyTimeout > 0 {
		dsn += fmt.Sprintf("&_busy_timeout=%d", cfg.BusyTimeout.Milliseconds())
	}
	return dsn
}

func (d *db) applyPragmas(cfg Config) error {
	pragmas := []string{}

	if cfg.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	sync := cfg.Synchronous
	if sync == "" {
		sync = "NORMAL"
	}
	pragmas = append(pragmas, fmt.Sprintf("PRAGMA synchronous=%s", sync))

	if cfg.CacheSizePgs > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size=%d", cfg.CacheSizePgs))
	}
	if cfg.MMapSizeByte > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA mmap_size=%d", cfg.MMapSizeByte))
	}

	for _, pragma := range pragmas {
		if _, err := d.conn.Exec(pragma); err != nil {
			return fmt.Errorf("sqlitebackend: pragma %q: %w", pragma, err)
		}
		d.logger.Debug().Str("pragma", pragma).Msg("pragma applied")
	}
	return nil
}

// inTransaction runs fn inside a transaction, rolling back on panic or error
// and committing otherwise. A panic in fn is recovered and returned as an
// error.
func (d *db) inTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitebackend: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			err = fmt.Errorf("sqlitebackend: panic in transaction: %v", p)
			return
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

func (d *db) Close() error {
	return d.conn.Close()
}
