package sqlitebackend

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type migration struct {
	version int
	name    string
	sql     string
}

type migrator struct {
	db     *db
	logger zerolog.Logger
}

func newMigrator(d *db, logger zerolog.Logger) *migrator {
	return &migrator{db: d, logger: logger}
}

// migrate applies every migration not yet recorded in schema_migrations, in
// ascending version order, each inside its own transaction.
func (m *migrator) migrate(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	all, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, mig := range all {
		if applied[mig.version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("sqlitebackend: migration %d_%s: %w", mig.version, mig.name, err)
		}
		m.logger.Info().Int("version", mig.version).Str("name", mig.name).Msg("applied migration")
	}
	return nil
}

func (m *migrator) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("sqlitebackend: ensure migrations table: %w", err)
	}
	return nil
}

func (m *migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.conn.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("sqlitebackend: query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("sqlitebackend: scan migration row: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *migrator) apply(ctx context.Context, mig migration) error {
	return m.db.inTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mig.sql); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			mig.version, mig.name)
		return err
	})
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("sqlitebackend: read migrations dir: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, name, err := parseMigrationFilename(entry.Name())
		if err != nil {
			return nil, err
		}
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("sqlitebackend: read %s: %w", entry.Name(), err)
		}
		out = append(out, migration{version: version, name: name, sql: string(content)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// parseMigrationFilename parses "0001_init.sql" into (1, "init").
func parseMigrationFilename(filename string) (int, string, error) {
	base := strings.TrimSuffix(filename, ".sql")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("sqlitebackend: malformed migration filename %q", filename)
	}

	var version int
	if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
		return 0, "", fmt.Errorf("sqlitebackend: malformed migration version in %q: %w", filename, err)
	}
	return version, parts[1], nil
}
