// Command transbasket-migrate copies every cache entry from one backend to
// another, dropping count and timestamps so the destination starts fresh.
// Only text<->sqlite pairs, in either direction, are supported.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/onionmixer/transbasket/internal/cachecore"
	"github.com/onionmixer/transbasket/internal/migrate"
	"github.com/onionmixer/transbasket/internal/observability"
	"github.com/onionmixer/transbasket/pkg/version"
)

var (
	fromKind   string
	fromConfig string
	toKind     string
	toConfig   string
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:   "transbasket-migrate",
	Short: "Migrate translation-cache entries between backends",
	Long: `transbasket-migrate copies every entry from a source cache backend into a
destination backend, identity fields only — count and last-used timestamps
are not carried over, so a migrated entry starts as if newly seen.

Supported pairs: text -> sqlite, sqlite -> text. Both directions require a
JSON config file describing the respective backend (the same shape as the
daemon's own cache.text / cache.sqlite configuration block).`,
	RunE: runMigrate,
}

func init() {
	rootCmd.Flags().StringVar(&fromKind, "from", "", "source backend kind: text or sqlite (required)")
	rootCmd.Flags().StringVar(&fromConfig, "from-config", "", "path to the source backend's JSON config (required)")
	rootCmd.Flags().StringVar(&toKind, "to", "", "destination backend kind: text or sqlite (required)")
	rootCmd.Flags().StringVar(&toConfig, "to-config", "", "path to the destination backend's JSON config (required)")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "suppress periodic progress log lines")

	rootCmd.MarkFlagRequired("from")
	rootCmd.MarkFlagRequired("from-config")
	rootCmd.MarkFlagRequired("to")
	rootCmd.MarkFlagRequired("to-config")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:   zerolog.InfoLevel,
		Format:  "console",
		Service: "transbasket-migrate",
		Version: version.Version,
	})

	source := cachecore.Kind(fromKind)
	dest := cachecore.Kind(toKind)

	if !isMigratable(source) || !isMigratable(dest) {
		return fmt.Errorf("unsupported migration pair %q -> %q: only text and sqlite are supported", fromKind, toKind)
	}

	sourceBackend, err := migrate.OpenBackend(source, fromConfig, logger)
	if err != nil {
		return fmt.Errorf("open source backend: %w", err)
	}
	defer sourceBackend.Close()

	destBackend, err := migrate.OpenBackend(dest, toConfig, logger)
	if err != nil {
		return fmt.Errorf("open destination backend: %w", err)
	}
	defer destBackend.Close()

	logger.Info().Str("from", fromKind).Str("to", toKind).Msg("starting migration")

	result, err := migrate.Run(sourceBackend, destBackend, logger, !noProgress)
	if err != nil {
		return err
	}

	fmt.Printf("migrated: %d, failed: %d\n", result.Migrated, result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
	return nil
}

func isMigratable(kind cachecore.Kind) bool {
	return kind == cachecore.KindText || kind == cachecore.KindSQLite
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
