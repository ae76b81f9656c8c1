package envelope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest(t *testing.T) Request {
	t.Helper()
	id, err := uuid.NewRandom() // google/uuid's NewRandom is a v4 UUID
	require.NoError(t, err)
	return Request{
		Timestamp: "2026-08-01T12:00:00Z",
		UUID:      id.String(),
		From:      "eng",
		To:        "kor",
		Text:      "hello",
	}
}

func TestValidate_AcceptsWellFormedRequest(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate(validRequest(t)))
}

func TestValidateTimestamp_RejectsNonRFC3339(t *testing.T) {
	_, err := ValidateTimestamp("2026-08-01 12:00:00")
	assert.Error(t, err)
}

func TestValidateUUID_RejectsNonUUID(t *testing.T) {
	assert.Error(t, ValidateUUID("not-a-uuid"))
}

func TestValidateUUID_RejectsNonV4(t *testing.T) {
	v1 := "6ba7b810-9dad-11d1-80b4-00c04fd430c8" // a well-known v1 UUID
	assert.Error(t, ValidateUUID(v1))
}

func TestValidateLangCode_RejectsWrongLength(t *testing.T) {
	assert.Error(t, ValidateLangCode("en"))
	assert.Error(t, ValidateLangCode("english"))
}

func TestValidateLangCode_RejectsUppercase(t *testing.T) {
	assert.Error(t, ValidateLangCode("ENG"))
}

func TestValidateLangCode_AcceptsThreeLetterCode(t *testing.T) {
	assert.NoError(t, ValidateLangCode("eng"))
}

func TestValidateText_RejectsEmpty(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.ValidateText(""))
}

func TestValidateText_RejectsOversized(t *testing.T) {
	cfg := Config{MaxTextLength: 5}
	assert.Error(t, cfg.ValidateText("this is too long"))
}

func TestValidate_ReportsFirstViolation(t *testing.T) {
	cfg := DefaultConfig()
	req := validRequest(t)
	req.Timestamp = "garbage"
	req.From = "x"

	err := cfg.Validate(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}
