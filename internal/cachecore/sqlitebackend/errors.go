package sqlitebackend

import "strings"

// isUniqueConstraintError reports whether err came from violating the UNIQUE
// index on trans_cache.hash. modernc.org/sqlite wraps the underlying SQLite
// error code in a message rather than a typed sentinel, so the check is the
// same substring match the driver's own tests use.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
