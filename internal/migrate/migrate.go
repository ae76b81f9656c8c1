// Package migrate implements the offline migration tool's core logic:
// reading every entry out of one cache backend and inserting it, identity
// fields only, into another. It never touches the running daemon — source
// and destination are opened directly, outside any cachecore.Cache façade.
package migrate

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onionmixer/transbasket/internal/cachecore"
)

// progressEvery controls how often Run logs a progress line while migrating.
const progressEvery = 100

// Result reports how a migration went: how many entries made it into the
// destination, and how many failed to insert for reasons other than already
// existing there.
type Result struct {
	Migrated int
	Failed   int
}

// Run iterates source in ascending id order (via its Enumerable capability)
// and calls Add on dest with only the four identity fields — from, to,
// source text, translated text. Count and timestamps are never carried
// over: a migrated entry starts fresh, as if it had just been seen for the
// first time on the destination backend. An entry that already exists on
// dest is treated as already migrated, not a failure. Run always calls
// dest.Save() before returning, even if some entries failed.
func Run(source, dest cachecore.Backend, logger zerolog.Logger, showProgress bool) (Result, error) {
	enumerable, ok := source.(cachecore.Enumerable)
	if !ok {
		return Result{}, fmt.Errorf("migrate: source backend does not support enumeration")
	}

	entries, err := enumerable.All()
	if err != nil {
		return Result{}, fmt.Errorf("migrate: list source entries: %w", err)
	}

	var result Result
	for i, entry := range entries {
		_, err := dest.Add(entry.FromLang, entry.ToLang, entry.SourceText, entry.TranslatedText)
		switch {
		case err == nil:
			result.Migrated++
		case errors.Is(err, cachecore.ErrAlreadyExists):
			result.Migrated++
		default:
			result.Failed++
			logger.Warn().
				Err(err).
				Str("from", entry.FromLang).
				Str("to", entry.ToLang).
				Msg("failed to migrate entry")
		}

		if showProgress && (i+1)%progressEvery == 0 {
			logger.Info().Int("done", i+1).Int("total", len(entries)).Msg("migration in progress")
		}
	}

	if err := dest.Save(); err != nil {
		return result, fmt.Errorf("migrate: save destination: %w", err)
	}

	logger.Info().
		Int("migrated", result.Migrated).
		Int("failed", result.Failed).
		Int("total", len(entries)).
		Msg("migration complete")

	return result, nil
}
