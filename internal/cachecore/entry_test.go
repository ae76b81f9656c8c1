package cachecore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_Deterministic(t *testing.T) {
	a := Hash("en", "ko", "hello")
	b := Hash("en", "ko", "hello")
	assert.Equal(t, a, b)
}

func TestHash_DistinguishesFields(t *testing.T) {
	base := Hash("en", "ko", "hello")

	assert.NotEqual(t, base, Hash("en", "ja", "hello"))
	assert.NotEqual(t, base, Hash("fr", "ko", "hello"))
	assert.NotEqual(t, base, Hash("en", "ko", "goodbye"))
}

func TestHash_NoDelimiterCollision(t *testing.T) {
	// "ab" + "c" and "a" + "bc" concatenate to the same bytes; the '|'
	// delimiter keeps the field boundary inside the hashed input, so they
	// do not collide. (Fields that themselves contain '|' are not
	// disambiguated: the hashed bytes are just from|to|text.)
	a := Hash("ab", "c", "x")
	b := Hash("a", "bc", "x")
	assert.NotEqual(t, a, b)
}

func TestHash_IsLowercaseHex64(t *testing.T) {
	h := Hash("en", "ko", "hello")
	assert.Len(t, h, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", h)
}
