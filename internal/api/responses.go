package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/snarg/autosubs/internal/apperr"
	"github.com/snarg/autosubs/internal/media"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// StatusFor maps a pipeline error to an HTTP status. Input errors are the
// caller's fault; everything else is ours.
func StatusFor(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, media.ErrUploadTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case apperr.KindOf(err) == apperr.KindInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WritePipelineError writes err with the status from StatusFor.
func WritePipelineError(w http.ResponseWriter, err error) {
	WriteError(w, StatusFor(err), err.Error())
}

// QueryString extracts a trimmed, non-empty string query parameter.
func QueryString(r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", false
	}
	return v, true
}
