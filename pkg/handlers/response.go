package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Mathiio/edisem-sub000/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// statusFromError maps engine sentinel errors to HTTP status codes. Unknown
// errors are internal.
func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, apperrors.ErrSubmitInProgress):
		return http.StatusConflict, "submit_in_progress"
	case errors.Is(err, apperrors.ErrSaveFailed):
		return http.StatusBadGateway, "save_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
