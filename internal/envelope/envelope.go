// Package envelope validates the wire-level request fields the cache core
// and translator consume: an RFC 3339 timestamp, a UUID v4 request
// identifier, ISO 639-2 language codes, and a length-bounded source text.
// Validation here is deliberately shallow — it checks the shapes the rest of
// the system depends on, not a full ISO 639-2 registry lookup or a natural
// language check of the text itself.
package envelope

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// langCodePattern matches an ISO 639-2 code: exactly three lowercase ASCII
// letters. It does not check the code against the registry of codes that
// actually exist.
var langCodePattern = regexp.MustCompile(`^[a-z]{3}$`)

// Request is the decoded body of a POST /translate request.
type Request struct {
	Timestamp string `json:"timestamp"`
	UUID      string `json:"uuid"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
}

// Config bounds the text field's size. The rest of the contract (timestamp
// format, UUID version, language code shape) has no configurable knobs.
type Config struct {
	MaxTextLength int
}

// DefaultConfig caps source text at 10000 bytes, matching the order of
// magnitude a synchronous translation call can service within one request.
func DefaultConfig() Config {
	return Config{MaxTextLength: 10000}
}

// Validate checks every field of r and returns the first violation found, in
// field order: timestamp, uuid, from, to, text.
func (c Config) Validate(r Request) error {
	if _, err := ValidateTimestamp(r.Timestamp); err != nil {
		return err
	}
	if err := ValidateUUID(r.UUID); err != nil {
		return err
	}
	if err := ValidateLangCode(r.From); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if err := ValidateLangCode(r.To); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if err := c.ValidateText(r.Text); err != nil {
		return err
	}
	return nil
}

// ValidateTimestamp parses an RFC 3339 timestamp.
func ValidateTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	return t, nil
}

// ValidateUUID checks that id parses as a UUID and is version 4.
func ValidateUUID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("uuid: %w", err)
	}
	if parsed.Version() != 4 {
		return fmt.Errorf("uuid: must be version 4, got version %d", parsed.Version())
	}
	return nil
}

// ValidateLangCode checks that code has the shape of an ISO 639-2 code.
func ValidateLangCode(code string) error {
	if !langCodePattern.MatchString(code) {
		return fmt.Errorf("must be a 3-letter lowercase language code, got %q", code)
	}
	return nil
}

// ValidateText enforces non-empty, valid-UTF-8, bounded-length source text.
func (c Config) ValidateText(text string) error {
	if text == "" {
		return fmt.Errorf("text: must not be empty")
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("text: must be valid UTF-8")
	}
	if max := c.MaxTextLength; max > 0 && len(text) > max {
		return fmt.Errorf("text: exceeds maximum length of %d bytes", max)
	}
	return nil
}
