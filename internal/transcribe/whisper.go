package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint
// (speaches, faster-whisper-server, or OpenAI itself).
type WhisperClient struct {
	url         string
	model       string
	computeType string
	apiKey      string
	timeout     time.Duration
	client      *http.Client
}

// WhisperResponse is the parsed response from the Whisper API (verbose_json format).
type WhisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment is a segment-level timestamp from Whisper.
type WhisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// NewWhisperClient creates a new Whisper HTTP client. computeType is passed
// through to faster-whisper servers that accept it and may be empty.
func NewWhisperClient(url, model, computeType string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:         url,
		model:       model,
		computeType: computeType,
		timeout:     timeout,
		client:      &http.Client{Timeout: timeout},
	}
}

// WithAPIKey sets a bearer token for hosted endpoints.
func (wc *WhisperClient) WithAPIKey(key string) *WhisperClient {
	wc.apiKey = key
	return wc
}

// Name returns the provider name.
func (wc *WhisperClient) Name() string { return "whisper" }

// Model returns the configured model identifier.
func (wc *WhisperClient) Model() string { return wc.model }

// Transcribe sends an audio file to the Whisper API and returns its segments.
// Uses multipart/form-data. Only non-default parameters are sent, so this
// works with any OpenAI-compatible endpoint.
func (wc *WhisperClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (SegmentStream, error) {
	body, contentType, err := wc.buildForm(audioPath, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if wc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+wc.apiKey)
	}

	resp, err := wc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper API error (status %d): %s", resp.StatusCode, string(data))
	}

	var result WhisperResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	segs := make([]Segment, len(result.Segments))
	for i, s := range result.Segments {
		segs[i] = Segment{Start: s.Start, End: s.End, Text: s.Text}
	}
	return NewSliceStream(segs, Info{Duration: durationPtr(result.Duration), Language: result.Language}), nil
}

func (wc *WhisperClient) buildForm(audioPath string, opts TranscribeOpts) (*bytes.Buffer, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy audio data: %w", err)
	}

	if wc.model != "" {
		w.WriteField("model", wc.model)
	}

	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	w.WriteField("language", lang)
	w.WriteField("temperature", fmt.Sprintf("%.2f", opts.Temperature))
	w.WriteField("response_format", "verbose_json")
	w.WriteField("timestamp_granularities[]", "segment")

	if opts.Prompt != "" {
		w.WriteField("prompt", opts.Prompt)
	}
	if opts.BeamSize > 0 {
		w.WriteField("beam_size", fmt.Sprintf("%d", opts.BeamSize))
	}
	if opts.VadFilter {
		w.WriteField("vad_filter", "true")
	}
	if wc.computeType != "" {
		w.WriteField("compute_type", wc.computeType)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
