package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// guardedRouter mounts stub transcription routes behind mw and leaves
// /api/health outside it, the way NewServer lays out the router.
func guardedRouter(mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", okHandler)
		r.Group(func(r chi.Router) {
			r.Use(mw...)
			r.Get("/transcribe", okHandler)
			r.Post("/transcribe-file", okHandler)
		})
	})
	return r
}

func serve(h http.Handler, method, target, remote string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequestID(t *testing.T) {
	t.Run("generates_id_when_missing", func(t *testing.T) {
		rec := serve(RequestID(okHandler), "GET", "/api/transcribe?url=x", "")
		if id := rec.Header().Get("X-Request-ID"); len(id) != 16 {
			t.Errorf("X-Request-ID = %q, want 16 hex chars", id)
		}
	})

	t.Run("preserves_provided_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/transcribe-file", nil)
		req.Header.Set("X-Request-ID", "upload-42")
		RequestID(okHandler).ServeHTTP(rec, req)
		if id := rec.Header().Get("X-Request-ID"); id != "upload-42" {
			t.Errorf("X-Request-ID = %q, want upload-42", id)
		}
	})
}

func TestCORSWithOrigins(t *testing.T) {
	const ui = "https://subs.example"

	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"any_origin_get", nil, "GET", "", http.StatusOK, "*"},
		{"any_origin_preflight", nil, "OPTIONS", ui, http.StatusNoContent, "*"},
		{"listed_origin_get", []string{ui}, "GET", ui, http.StatusOK, ui},
		{"listed_origin_preflight", []string{ui}, "OPTIONS", ui, http.StatusNoContent, ui},
		{"unlisted_origin_get_served_without_headers", []string{ui}, "GET", "https://other.example", http.StatusOK, ""},
		{"unlisted_origin_preflight_forbidden", []string{ui}, "OPTIONS", "https://other.example", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/api/transcribe-file", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			CORSWithOrigins(tt.origins)(inner).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.method == "OPTIONS" && called {
				t.Error("preflight reached the handler")
			}
			if len(tt.origins) > 0 && rec.Header().Get("Vary") != "Origin" {
				t.Error("missing Vary: Origin")
			}
			if tt.wantAllow != "" {
				if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "Content-Disposition, X-Request-ID" {
					t.Errorf("Access-Control-Expose-Headers = %q", got)
				}
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	t.Run("blocks_after_burst", func(t *testing.T) {
		h := RateLimiter(1, 2)(okHandler)
		for i := 0; i < 2; i++ {
			if rec := serve(h, "GET", "/api/transcribe?url=x", "5.6.7.8:1234"); rec.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, rec.Code)
			}
		}
		rec := serve(h, "GET", "/api/transcribe?url=x", "5.6.7.8:1234")
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "1" {
			t.Error("missing Retry-After")
		}
		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "rate limit exceeded" {
			t.Errorf("body = %q, want rate limit error", rec.Body.String())
		}
	})

	t.Run("clients_limited_independently", func(t *testing.T) {
		h := RateLimiter(1, 1)(okHandler)
		serve(h, "GET", "/api/transcribe?url=x", "10.0.0.1:1234")
		if rec := serve(h, "GET", "/api/transcribe?url=x", "10.0.0.1:4321"); rec.Code != http.StatusTooManyRequests {
			t.Errorf("same IP, new port: status = %d, want 429", rec.Code)
		}
		if rec := serve(h, "GET", "/api/transcribe?url=x", "10.0.0.2:1234"); rec.Code != http.StatusOK {
			t.Errorf("other IP: status = %d, want 200", rec.Code)
		}
	})

	t.Run("transcription_routes_share_budget_health_exempt", func(t *testing.T) {
		h := guardedRouter(RateLimiter(1, 1))
		const ip = "192.0.2.7:5000"

		if rec := serve(h, "GET", "/api/transcribe?url=x", ip); rec.Code != http.StatusOK {
			t.Fatalf("first transcribe: status = %d, want 200", rec.Code)
		}
		if rec := serve(h, "POST", "/api/transcribe-file", ip); rec.Code != http.StatusTooManyRequests {
			t.Errorf("upload after exhausting budget: status = %d, want 429", rec.Code)
		}
		for i := 0; i < 3; i++ {
			if rec := serve(h, "GET", "/api/health", ip); rec.Code != http.StatusOK {
				t.Errorf("health %d: status = %d, want 200", i, rec.Code)
			}
		}
	})
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		target string
		header string
		want   int
	}{
		{"no_token_configured", "", "/api/transcribe?url=x", "", http.StatusOK},
		{"valid_header", "secret123", "/api/transcribe?url=x", "Bearer secret123", http.StatusOK},
		{"wrong_header", "secret123", "/api/transcribe?url=x", "Bearer wrong", http.StatusUnauthorized},
		{"missing", "secret123", "/api/transcribe?url=x", "", http.StatusUnauthorized},
		{"download_link_token", "secret123", "/api/transcribe?url=x&format=srt&token=secret123", "", http.StatusOK},
		{"wrong_query_token", "secret123", "/api/transcribe?url=x&token=wrong", "", http.StatusUnauthorized},
		{"basic_scheme", "secret123", "/api/transcribe?url=x", "Basic c2VjcmV0", http.StatusUnauthorized},
		{"health_open", "secret123", "/api/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			guardedRouter(BearerAuth(tt.token)).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	if rec := serve(Recoverer(okHandler), "GET", "/api/health", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	panicker := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("renderer blew up")
	})
	rec := serve(Recoverer(panicker), "GET", "/api/transcribe?url=x", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Error != "internal server error" {
		t.Errorf("error = %q, want internal server error", body.Error)
	}
}
