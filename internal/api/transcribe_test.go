package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/autosubs/internal/apperr"
	"github.com/snarg/autosubs/internal/caption"
	"github.com/snarg/autosubs/internal/media"
	"github.com/snarg/autosubs/internal/pipeline"
)

type fakeTranscriber struct {
	res *pipeline.Result
	err error

	gotURL    string
	gotTarget string
	gotUpload media.Upload
	gotBody   string
	calls     int
}

func (f *fakeTranscriber) TranscribeURL(_ context.Context, url, target string) (*pipeline.Result, error) {
	f.calls++
	f.gotURL = url
	f.gotTarget = target
	return f.res, f.err
}

func (f *fakeTranscriber) TranscribeUpload(_ context.Context, up media.Upload, target string) (*pipeline.Result, error) {
	f.calls++
	f.gotUpload = up
	f.gotTarget = target
	if up.Body != nil {
		b, _ := io.ReadAll(up.Body)
		f.gotBody = string(b)
	}
	return f.res, f.err
}

func sampleResult() *pipeline.Result {
	d := 2.0
	return &pipeline.Result{
		Segments: []caption.Segment{{Start: 0, End: 2, Text: "Hi there"}},
		SRT:      "1\n00:00:00,000 --> 00:00:02,000\nHi there\n\n",
		VTT:      "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nHi there\n\n",
		Duration: &d,
		Language: "en",
	}
}

func newTestRouter(svc Transcriber, maxBytes int64) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", NewTranscribeHandler(svc, maxBytes, zerolog.Nop()).Routes)
	return r
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestTranscribeURL(t *testing.T) {
	t.Run("json_payload", func(t *testing.T) {
		svc := &fakeTranscriber{res: sampleResult()}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/transcribe?url=https://youtu.be/abc&target_lang=ES", nil)
		newTestRouter(svc, 0).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if svc.gotURL != "https://youtu.be/abc" || svc.gotTarget != "ES" {
			t.Errorf("service got url=%q target=%q", svc.gotURL, svc.gotTarget)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("JSON decode: %v", err)
		}
		for _, key := range []string{"segments", "srt", "vtt", "duration", "language"} {
			if _, ok := body[key]; !ok {
				t.Errorf("response missing %q", key)
			}
		}
		if _, ok := body["Translation"]; ok {
			t.Error("translation stats should not be serialized")
		}
		segs := body["segments"].([]any)
		first := segs[0].(map[string]any)
		if first["text"] != "Hi there" || first["start"] != 0.0 || first["end"] != 2.0 {
			t.Errorf("segment = %v", first)
		}
	})

	t.Run("null_duration", func(t *testing.T) {
		res := sampleResult()
		res.Duration = nil
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/transcribe?url=x", nil)
		newTestRouter(&fakeTranscriber{res: res}, 0).ServeHTTP(rec, req)

		if !strings.Contains(rec.Body.String(), `"duration":null`) {
			t.Errorf("body = %s, want duration null", rec.Body.String())
		}
	})

	t.Run("missing_url", func(t *testing.T) {
		svc := &fakeTranscriber{res: sampleResult()}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/transcribe?url=%20", nil)
		newTestRouter(svc, 0).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if svc.calls != 0 {
			t.Error("service should not run without a url")
		}
	})

	t.Run("srt_attachment", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/transcribe?url=x&format=srt", nil)
		newTestRouter(&fakeTranscriber{res: sampleResult()}, 0).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/x-subrip; charset=utf-8" {
			t.Errorf("Content-Type = %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=subtitles.srt" {
			t.Errorf("Content-Disposition = %q", cd)
		}
		if rec.Body.String() != sampleResult().SRT {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("vtt_attachment", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/transcribe?url=x&format=VTT", nil)
		newTestRouter(&fakeTranscriber{res: sampleResult()}, 0).ServeHTTP(rec, req)

		if ct := rec.Header().Get("Content-Type"); ct != "text/vtt; charset=utf-8" {
			t.Errorf("Content-Type = %q", ct)
		}
		if !strings.HasPrefix(rec.Body.String(), "WEBVTT\n\n") {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("unknown_format", func(t *testing.T) {
		svc := &fakeTranscriber{res: sampleResult()}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/transcribe?url=x&format=ass", nil)
		newTestRouter(svc, 0).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if svc.calls != 0 {
			t.Error("service should not run for an unknown format")
		}
	})

	t.Run("error_mapping", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want int
		}{
			{"missing_url", apperr.Input("transcribe", "missing 'url' parameter"), http.StatusBadRequest},
			{"download_failed", apperr.New(apperr.KindAcquisition, "acquire", media.ErrAudioNotFound), http.StatusInternalServerError},
			{"recognizer_failed", apperr.New(apperr.KindRecognition, "recognize", errors.New("model crashed")), http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := httptest.NewRecorder()
				req := httptest.NewRequest("GET", "/api/transcribe?url=x", nil)
				newTestRouter(&fakeTranscriber{err: tt.err}, 0).ServeHTTP(rec, req)

				if rec.Code != tt.want {
					t.Errorf("status = %d, want %d", rec.Code, tt.want)
				}
				var body ErrorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("JSON decode: %v", err)
				}
				if body.Error != tt.err.Error() {
					t.Errorf("error = %q, want %q", body.Error, tt.err.Error())
				}
			})
		}
	})
}

func TestTranscribeFile(t *testing.T) {
	t.Run("json_payload", func(t *testing.T) {
		svc := &fakeTranscriber{res: sampleResult()}
		body, ct := multipartBody(t, "clip.mp4", "fake video", map[string]string{"target_lang": "fr"})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/transcribe-file", body)
		req.Header.Set("Content-Type", ct)
		newTestRouter(svc, 1<<20).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if svc.gotUpload.Filename != "clip.mp4" {
			t.Errorf("Filename = %q, want clip.mp4", svc.gotUpload.Filename)
		}
		if svc.gotUpload.Size != int64(len("fake video")) {
			t.Errorf("Size = %d, want %d", svc.gotUpload.Size, len("fake video"))
		}
		if svc.gotBody != "fake video" {
			t.Errorf("body = %q", svc.gotBody)
		}
		if svc.gotTarget != "fr" {
			t.Errorf("target = %q, want fr", svc.gotTarget)
		}
	})

	t.Run("vtt_attachment_named_after_upload", func(t *testing.T) {
		body, ct := multipartBody(t, "lecture.mov", "data", map[string]string{"format": "vtt"})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/transcribe-file", body)
		req.Header.Set("Content-Type", ct)
		newTestRouter(&fakeTranscriber{res: sampleResult()}, 0).ServeHTTP(rec, req)

		if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=lecture.vtt" {
			t.Errorf("Content-Disposition = %q", cd)
		}
	})

	t.Run("missing_file", func(t *testing.T) {
		svc := &fakeTranscriber{res: sampleResult()}
		body, ct := multipartBody(t, "", "", map[string]string{"target_lang": "fr"})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/transcribe-file", body)
		req.Header.Set("Content-Type", ct)
		newTestRouter(svc, 0).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if svc.calls != 0 {
			t.Error("service should not run without a file")
		}
	})

	t.Run("not_multipart", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/transcribe-file", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		newTestRouter(&fakeTranscriber{}, 0).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("body_over_limit", func(t *testing.T) {
		svc := &fakeTranscriber{res: sampleResult()}
		big := strings.Repeat("x", 2*formOverhead+1024)
		body, ct := multipartBody(t, "big.wav", big, nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/transcribe-file", body)
		req.Header.Set("Content-Type", ct)
		newTestRouter(svc, 1024).ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
		if svc.calls != 0 {
			t.Error("service should not run for an oversize body")
		}
	})

	t.Run("policy_errors", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want int
		}{
			{"extension", apperr.New(apperr.KindInput, "upload", media.ErrDisallowedExtension), http.StatusBadRequest},
			{"empty", apperr.New(apperr.KindInput, "upload", media.ErrEmptyUpload), http.StatusBadRequest},
			{"too_large", apperr.New(apperr.KindInput, "upload", media.ErrUploadTooLarge), http.StatusRequestEntityTooLarge},
			{"conversion", apperr.New(apperr.KindAcquisition, "acquire", errors.New("ffmpeg exited 1")), http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				body, ct := multipartBody(t, "a.mp3", "data", nil)
				rec := httptest.NewRecorder()
				req := httptest.NewRequest("POST", "/api/transcribe-file", body)
				req.Header.Set("Content-Type", ct)
				newTestRouter(&fakeTranscriber{err: tt.err}, 0).ServeHTTP(rec, req)

				if rec.Code != tt.want {
					t.Errorf("status = %d, want %d", rec.Code, tt.want)
				}
			})
		}
	})
}
