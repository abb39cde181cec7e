package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"sudo_thrust/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}

	var ve *domain.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		body.Field = ve.Field
	case errors.Is(err, domain.ErrInvalidSymbol):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyOpen), errors.Is(err, domain.ErrExecutionPending):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNoOpenPosition):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientCapital):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, body)
}

// decodeBody reads a JSON body into v; a malformed body is a validation error.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "%v", err)
	}
	return nil
}
