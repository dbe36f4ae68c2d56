package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/autosubs/internal/config"
)

func testServer(cfg *config.Config, svc Transcriber) http.Handler {
	health := NewHealthHandler(fakeRecognizer{}, nil, nil, nil, "test", time.Now())
	return NewServer(ServerOptions{
		Config:  cfg,
		Service: svc,
		Health:  health,
		Log:     zerolog.Nop(),
	}).Handler()
}

func TestServerRoutes(t *testing.T) {
	cfg := &config.Config{
		AuthToken:      "secret",
		MaxUploadMB:    1,
		MetricsEnabled: true,
	}
	h := testServer(cfg, &fakeTranscriber{res: sampleResult()})

	t.Run("health_without_auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
	})

	t.Run("transcribe_requires_auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/transcribe?url=x", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("transcribe_with_token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/transcribe?url=x", nil)
		req.Header.Set("Authorization", "Bearer secret")
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("download_link_with_query_token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/transcribe?url=x&format=srt&token=secret", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment") {
			t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
		}
	})

	t.Run("metrics_exposed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "autosubs_http_requests_total") {
			t.Error("expected autosubs_http_requests_total in metrics output")
		}
	})

	t.Run("cors_preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/transcribe", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}

func TestServerMetricsDisabled(t *testing.T) {
	h := testServer(&config.Config{MaxUploadMB: 1}, &fakeTranscriber{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServerRateLimit(t *testing.T) {
	cfg := &config.Config{MaxUploadMB: 1, RateLimitRPS: 1, RateLimitBurst: 1}
	h := testServer(cfg, &fakeTranscriber{res: sampleResult()})

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/transcribe?url=x", nil)
		req.RemoteAddr = "192.0.2.1:5000"
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, rec.Code, want)
		}
	}

	// health stays outside the limiter
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/health", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}
