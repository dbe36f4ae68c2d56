package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/autosubs/internal/apperr"
	"github.com/snarg/autosubs/internal/caption"
	"github.com/snarg/autosubs/internal/media"
	"github.com/snarg/autosubs/internal/pipeline"
)

// multipart overhead allowed on top of the file size limit
const formOverhead = 1 << 20

// Transcriber runs the captioning pipeline for one request.
type Transcriber interface {
	TranscribeURL(ctx context.Context, url, target string) (*pipeline.Result, error)
	TranscribeUpload(ctx context.Context, up media.Upload, target string) (*pipeline.Result, error)
}

type TranscribeHandler struct {
	svc      Transcriber
	maxBytes int64
	log      zerolog.Logger
}

// NewTranscribeHandler creates the transcription endpoints. maxBytes caps
// the upload size; 0 disables the cap.
func NewTranscribeHandler(svc Transcriber, maxBytes int64, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		svc:      svc,
		maxBytes: maxBytes,
		log:      log.With().Str("handler", "transcribe").Logger(),
	}
}

// Routes registers the transcription endpoints.
func (h *TranscribeHandler) Routes(r chi.Router) {
	r.Get("/transcribe", h.TranscribeURL)
	r.Post("/transcribe-file", h.TranscribeFile)
}

// TranscribeURL handles GET /api/transcribe?url=&target_lang=&format=.
func (h *TranscribeHandler) TranscribeURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := parseResponseFormat(q.Get("format"))
	if err != nil {
		WritePipelineError(w, err)
		return
	}
	url, ok := QueryString(r, "url")
	if !ok {
		WriteError(w, http.StatusBadRequest, "missing 'url' parameter")
		return
	}

	res, err := h.svc.TranscribeURL(r.Context(), url, q.Get("target_lang"))
	if err != nil {
		WritePipelineError(w, err)
		return
	}
	writeResult(w, res, format, "subtitles")
}

// TranscribeFile handles POST /api/transcribe-file with a multipart "file"
// field and optional "target_lang" and "format" fields.
func (h *TranscribeHandler) TranscribeFile(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.log.Debug().Err(err).Msg("multipart parse failed")
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteError(w, http.StatusRequestEntityTooLarge, media.ErrUploadTooLarge.Error())
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	rawFormat := r.FormValue("format")
	if rawFormat == "" {
		rawFormat = r.URL.Query().Get("format")
	}
	format, err := parseResponseFormat(rawFormat)
	if err != nil {
		WritePipelineError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WritePipelineError(w, apperr.New(apperr.KindInput, "upload", media.ErrMissingFile))
		return
	}
	defer file.Close()

	up := media.Upload{Filename: header.Filename, Size: header.Size, Body: file}
	res, err := h.svc.TranscribeUpload(r.Context(), up, r.FormValue("target_lang"))
	if err != nil {
		WritePipelineError(w, err)
		return
	}
	base := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	writeResult(w, res, format, base)
}

// parseResponseFormat returns 0 for the default JSON payload.
func parseResponseFormat(s string) (caption.Format, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "json") {
		return 0, nil
	}
	f, err := caption.ParseFormat(s)
	if err != nil {
		return 0, apperr.New(apperr.KindInput, "format", err)
	}
	return f, nil
}

func writeResult(w http.ResponseWriter, res *pipeline.Result, format caption.Format, name string) {
	var doc string
	switch format {
	case caption.FormatSRT:
		doc = res.SRT
	case caption.FormatVTT:
		doc = res.VTT
	default:
		WriteJSON(w, http.StatusOK, res)
		return
	}
	if name == "" || name == "." {
		name = "subtitles"
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": name + "." + format.String(),
	}))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
