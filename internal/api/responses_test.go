package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snarg/autosubs/internal/apperr"
	"github.com/snarg/autosubs/internal/media"
)

// ── WriteJSON ────────────────────────────────────────────────────────

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"msg": "ok"})

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body["msg"] != "ok" {
		t.Errorf("body = %v, want msg=ok", body)
	}
}

// ── WriteError ───────────────────────────────────────────────────────

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "bad input")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body.Error != "bad input" {
		t.Errorf("Error = %q, want %q", body.Error, "bad input")
	}
}

// ── StatusFor ────────────────────────────────────────────────────────

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input", apperr.Input("transcribe", "missing 'url' parameter"), http.StatusBadRequest},
		{"bad_extension", apperr.New(apperr.KindInput, "upload", media.ErrDisallowedExtension), http.StatusBadRequest},
		{"too_large", apperr.New(apperr.KindInput, "upload", media.ErrUploadTooLarge), http.StatusRequestEntityTooLarge},
		{"max_bytes_reader", fmt.Errorf("parse form: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge},
		{"acquisition", apperr.New(apperr.KindAcquisition, "acquire", media.ErrAudioNotFound), http.StatusInternalServerError},
		{"recognition", apperr.New(apperr.KindRecognition, "recognize", errors.New("model crashed")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWritePipelineError(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePipelineError(rec, apperr.New(apperr.KindAcquisition, "acquire", media.ErrAudioNotFound))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body.Error != "acquire: audio not found after download" {
		t.Errorf("Error = %q", body.Error)
	}
}

// ── QueryString ──────────────────────────────────────────────────────

func TestQueryString(t *testing.T) {
	tests := []struct {
		query  string
		want   string
		wantOK bool
	}{
		{"name=abc", "abc", true},
		{"name=%20abc%20", "abc", true},
		{"name=", "", false},
		{"name=%20%20", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/?"+tt.query, nil)
			got, ok := QueryString(req, "name")
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("QueryString = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
