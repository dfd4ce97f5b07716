// Package httputil holds the JSON request and response helpers shared by handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

type apiError struct {
	Error string `json:"error"`
}

// WriteJSON writes data with the given status
func WriteJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes {"error": message}
func WriteError(w http.ResponseWriter, status int, message string, log zerolog.Logger) {
	WriteJSON(w, status, apiError{Error: message}, log)
}

// WriteDomainError maps err onto a status code and writes it
func WriteDomainError(w http.ResponseWriter, err error, log zerolog.Logger) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	WriteError(w, status, err.Error(), log)
}

// StatusFor returns the HTTP status for a domain error
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQuoteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes a single JSON object from the request body.
// Malformed bodies come back as a ValidationError.
func DecodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return domain.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return domain.NewValidationError("body", "request body must contain a single JSON object")
	}
	return nil
}
