package cachecore

import "errors"

// Errors returned by Backend implementations and the façade. The cache core
// never panics across this boundary; every failure surfaces as one of these
// or a wrapped form of one, per the "operations return, never raise" policy.
var (
	// ErrNotFound is returned by Backend.UpdateCount / UpdateTranslation
	// when the referenced hash does not exist.
	ErrNotFound = errors.New("cachecore: entry not found")
	// ErrAlreadyExists is returned by Backend.Add when the hash already exists.
	ErrAlreadyExists = errors.New("cachecore: entry already exists")
	// ErrInvalidInput names the empty/oversized identity-field failure.
	// Neither backend in this module returns it: they do not validate
	// identity fields, which are checked upstream by envelope validation.
	ErrInvalidInput = errors.New("cachecore: invalid input")
	// ErrUnsupportedKind is returned by a factory asked to build an
	// unimplemented backend kind (mongodb, redis — reserved, not built).
	ErrUnsupportedKind = errors.New("cachecore: unsupported backend kind")
)

// Kind enumerates the configured backend kinds. mongodb and redis are
// reserved in the configuration surface but have no concrete implementation.
type Kind string

const (
	KindText    Kind = "text"
	KindSQLite  Kind = "sqlite"
	KindMongoDB Kind = "mongodb"
	KindRedis   Kind = "redis"
)

// Stats reports aggregate cache occupancy at a point in time.
type Stats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`  // count >= threshold
	Expired int `json:"expired"` // last_used older than now - days*86400
}

// Backend is the eight-operation capability set every storage engine
// implements. The façade always calls these with its lock already held in
// the required mode (read for Lookup/Save/Stats, write for the rest);
// implementations must never acquire the façade's lock themselves, and must
// not block internally on anything but their own private resources (file
// handles, a database connection).
type Backend interface {
	// Lookup returns the entry whose hash matches (from, to, text), or
	// ErrNotFound. Implementations may touch last_used as a side effect.
	Lookup(from, to, text string) (Entry, error)

	// Add inserts a new entry with count=1 and timestamps set to now.
	// Returns ErrAlreadyExists if the hash is already present.
	Add(from, to, text, translation string) (Entry, error)

	// UpdateCount increments count by 1 and sets last_used to now.
	UpdateCount(hash string) (Entry, error)

	// UpdateTranslation replaces translated_text, resets count to 1, and
	// sets last_used to now.
	UpdateTranslation(hash, translation string) (Entry, error)

	// Save flushes in-memory state to durable storage. A no-op for
	// backends with transparent durability (SQLite).
	Save() error

	// Cleanup removes every entry with last_used older than
	// now - days*86400 and returns the number removed.
	Cleanup(days int) (int, error)

	// Stats reports total/active/expired counts given the current
	// admission threshold and cleanup age.
	Stats(threshold, days int) (Stats, error)

	// Close releases all resources held by the backend (file handles,
	// database connections, prepared statements).
	Close() error
}

// Enumerable is an optional capability, separate from the core eight-op
// Backend interface, implemented by backends that can list every entry they
// hold in ascending id order. Request-path code never needs this — only the
// offline migration tool, which type-asserts a source Backend against it.
type Enumerable interface {
	// All returns every entry currently held, ordered by ascending id.
	All() ([]Entry, error)
}
