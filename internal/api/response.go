package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// translateResponse is the success body for POST /translate.
type translateResponse struct {
	Timestamp      string `json:"timestamp"`
	UUID           string `json:"uuid"`
	TranslatedText string `json:"translatedText"`
}

// errorResponse is the error body for every failed request. UUID is omitted
// when the request never made it far enough to be parsed.
type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	UUID         string `json:"uuid,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// Error codes carried in errorResponse.ErrorCode.
const (
	errCodeMalformedBody  = "MALFORMED_BODY"
	errCodeValidation     = "VALIDATION_FAILED"
	errCodeInternal       = "INTERNAL_ERROR"
	errCodeExternalClient = "EXTERNAL_CLIENT_ERROR"
	errCodeExternalServer = "EXTERNAL_SERVER_ERROR"
	errCodeTimeout        = "TIMEOUT"
	errCodeRateLimited    = "RATE_LIMITED"
)

// writeJSON serializes data as JSON and writes it to the response writer.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.DefaultContextLogger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError writes a structured error response. uuid may be empty if the
// request body never parsed far enough to carry one.
func writeError(w http.ResponseWriter, status int, code, message, uuid string) {
	writeJSON(w, status, errorResponse{
		ErrorCode:    code,
		ErrorMessage: message,
		UUID:         uuid,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}
