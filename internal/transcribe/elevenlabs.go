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
	"strings"
	"time"
)

const elevenLabsSTTEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"

// Word grouping limits for turning word timestamps into caption segments.
const (
	maxSegmentChars    = 84
	maxSegmentDuration = 7.0
	maxWordGap         = 0.8
)

// ElevenLabsClient calls the ElevenLabs Speech-to-Text API.
type ElevenLabsClient struct {
	apiKey   string
	model    string // "scribe_v1" or "scribe_v2"
	keyterms string // comma-separated boost terms
	endpoint string
	client   *http.Client
}

type elevenlabsResponse struct {
	LanguageCode string           `json:"language_code"`
	Text         string           `json:"text"`
	Words        []elevenlabsWord `json:"words"`
}

// elevenlabsWord is a word or spacing entry. Times are in seconds.
type elevenlabsWord struct {
	Text  string  `json:"text"`
	Type  string  `json:"type"` // "word", "spacing" or "audio_event"
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewElevenLabsClient creates a new ElevenLabs STT client.
func NewElevenLabsClient(apiKey, model, keyterms string, timeout time.Duration) *ElevenLabsClient {
	if model == "" {
		model = "scribe_v1"
	}
	return &ElevenLabsClient{
		apiKey:   apiKey,
		model:    model,
		keyterms: keyterms,
		endpoint: elevenLabsSTTEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (el *ElevenLabsClient) Name() string  { return "elevenlabs" }
func (el *ElevenLabsClient) Model() string { return el.model }

// Transcribe uploads the audio and groups the returned word timestamps into
// caption-sized segments.
func (el *ElevenLabsClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (SegmentStream, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	w.WriteField("model_id", el.model)
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	w.WriteField("language_code", lang)
	w.WriteField("timestamps_granularity", "word")
	w.WriteField("tag_audio_events", "false")
	if opts.Temperature > 0 {
		w.WriteField("temperature", fmt.Sprintf("%.2f", opts.Temperature))
	}
	if keyterms := el.buildKeyterms(); keyterms != "" {
		w.WriteField("keyterms", keyterms)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, el.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("xi-api-key", el.apiKey)

	resp, err := el.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result elevenlabsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return NewSliceStream(groupWords(result.Words), Info{Language: result.LanguageCode}), nil
}

// groupWords joins word entries into segments, breaking after sentence-ending
// punctuation, on long pauses, and when a segment gets too long to read.
func groupWords(words []elevenlabsWord) []Segment {
	var (
		segs []Segment
		cur  *Segment
		text strings.Builder
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(text.String())
		if cur.Text != "" {
			segs = append(segs, *cur)
		}
		cur = nil
		text.Reset()
	}

	for _, w := range words {
		if w.Type != "word" {
			continue
		}
		if cur != nil && (w.Start-cur.End > maxWordGap ||
			w.End-cur.Start > maxSegmentDuration ||
			text.Len()+1+len(w.Text) > maxSegmentChars) {
			flush()
		}
		if cur == nil {
			cur = &Segment{Start: w.Start}
		} else {
			text.WriteByte(' ')
		}
		text.WriteString(strings.TrimSpace(w.Text))
		cur.End = w.End
		if strings.HasSuffix(w.Text, ".") || strings.HasSuffix(w.Text, "?") || strings.HasSuffix(w.Text, "!") {
			flush()
		}
	}
	flush()
	return segs
}

// buildKeyterms turns the comma-separated keyterms into the JSON array of
// {"text": "term"} objects the API expects.
func (el *ElevenLabsClient) buildKeyterms() string {
	var terms []string
	for _, t := range strings.Split(el.keyterms, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return ""
	}

	type keyterm struct {
		Text string `json:"text"`
	}
	arr := make([]keyterm, len(terms))
	for i, t := range terms {
		arr[i] = keyterm{Text: t}
	}
	b, _ := json.Marshal(arr)
	return string(b)
}
