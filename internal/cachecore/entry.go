// Package cachecore implements the translation-cache subsystem: the
// composite-key hash, the entry record, the pluggable Backend contract,
// and the façade that serializes access to a backend and enforces the
// confirm-by-repetition admission policy.
package cachecore

import (
	"crypto/sha256"
	"encoding/hex"
)

// Entry is a single cached translation.
//
// Lookup returns Entry by value: callers hold a copy, not a reference into
// backend storage, so nothing can outlive a façade lock release.
type Entry struct {
	ID             int64  `json:"id"`
	Hash           string `json:"hash"`
	FromLang       string `json:"from"`
	ToLang         string `json:"to"`
	SourceText     string `json:"source"`
	TranslatedText string `json:"target"`
	Count          int    `json:"count"`
	CreatedAt      int64  `json:"created_at"`
	LastUsed       int64  `json:"last_used"`
}

// Hash computes the composite cache key: SHA-256(from|to|text), lowercase hex.
// It is pure and allocation-free beyond the digest buffer; empty inputs are
// permitted here and rejected, if at all, by the envelope validator upstream.
func Hash(from, to, text string) string {
	h := sha256.New()
	h.Write([]byte(from))
	h.Write([]byte{'|'})
	h.Write([]byte(to))
	h.Write([]byte{'|'})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
