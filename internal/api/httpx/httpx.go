package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/screenfund/backend/internal/apperr"
)

type APIError struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// WriteAppError maps the domain error taxonomy onto HTTP statuses.
func WriteAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "resource not found", nil)
	case apperr.IsValidation(err):
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case apperr.IsBudget(err):
		WriteError(w, http.StatusConflict, "insufficient_funds", err.Error(), nil)
	case apperr.IsConflict(err):
		WriteError(w, http.StatusConflict, "conflict", err.Error(), nil)
	case apperr.IsProvider(err):
		WriteError(w, http.StatusBadGateway, "provider_error", err.Error(), nil)
	case apperr.IsInvariant(err):
		WriteError(w, http.StatusInternalServerError, "invariant_violation", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

// DecodeJSON reads the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
