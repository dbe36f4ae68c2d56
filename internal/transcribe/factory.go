package transcribe

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ProviderOptions selects and configures a recognizer backend.
type ProviderOptions struct {
	Provider string // "whisper", "deepinfra", "elevenlabs" or "native"

	WhisperURL         string
	WhisperModel       string
	WhisperComputeType string
	WhisperAPIKey      string
	Timeout            time.Duration

	DeepInfraAPIKey string
	DeepInfraModel  string

	ElevenLabsAPIKey   string
	ElevenLabsModel    string
	ElevenLabsKeyterms string

	ModelPath string
	Threads   int
}

// NewProvider builds the backend named by opts.Provider. The returned
// io.Closer releases backend resources and is never nil.
func NewProvider(opts ProviderOptions, log zerolog.Logger) (Provider, io.Closer, error) {
	switch opts.Provider {
	case "", "whisper":
		if opts.WhisperURL == "" {
			return nil, nil, fmt.Errorf("whisper provider requires WHISPER_URL")
		}
		wc := NewWhisperClient(opts.WhisperURL, opts.WhisperModel, opts.WhisperComputeType, opts.Timeout)
		if opts.WhisperAPIKey != "" {
			wc.WithAPIKey(opts.WhisperAPIKey)
		}
		return wc, nopCloser{}, nil
	case "deepinfra":
		if opts.DeepInfraAPIKey == "" {
			return nil, nil, fmt.Errorf("deepinfra provider requires DEEPINFRA_API_KEY")
		}
		model := opts.DeepInfraModel
		if model == "" {
			model = "openai/whisper-large-v3-turbo"
		}
		return NewDeepInfraClient(opts.DeepInfraAPIKey, model, opts.Timeout), nopCloser{}, nil
	case "elevenlabs":
		if opts.ElevenLabsAPIKey == "" {
			return nil, nil, fmt.Errorf("elevenlabs provider requires ELEVENLABS_API_KEY")
		}
		return NewElevenLabsClient(opts.ElevenLabsAPIKey, opts.ElevenLabsModel, opts.ElevenLabsKeyterms, opts.Timeout), nopCloser{}, nil
	case "native":
		np, err := NewNative(opts.ModelPath, opts.Threads, log)
		if err != nil {
			return nil, nil, err
		}
		return np, np, nil
	}
	return nil, nil, fmt.Errorf("unknown STT provider %q", opts.Provider)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
