//go:build whisper && cgo

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"
)

// NativeProvider runs whisper.cpp in-process through its cgo bindings. The
// model is loaded once. whisper.cpp keeps decode results on the model, so
// requests are serialized: the lock is held from Process until the returned
// stream is closed.
type NativeProvider struct {
	mu        sync.Mutex
	model     whisperlib.Model
	modelName string
	threads   uint
	log       zerolog.Logger
}

// NewNative loads the ggml model at modelPath. threads of 0 keeps the
// library default. Call Close when done.
func NewNative(modelPath string, threads int, log zerolog.Logger) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("native whisper: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("native whisper: load model %s: %w", modelPath, err)
	}
	name := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))
	if threads < 0 {
		threads = 0
	}
	return &NativeProvider{model: model, modelName: name, threads: uint(threads), log: log}, nil
}

// Name returns the provider name.
func (p *NativeProvider) Name() string { return "native" }

// Model returns the model file's base name.
func (p *NativeProvider) Model() string { return p.modelName }

// Close releases the model.
func (p *NativeProvider) Close() error { return p.model.Close() }

// Transcribe decodes the WAV at audioPath, runs inference and returns a
// stream that pulls segments from the whisper context on demand.
func (p *NativeProvider) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (SegmentStream, error) {
	samples, err := decodeWAV(audioPath)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	release := sync.OnceFunc(p.mu.Unlock)
	ok := false
	defer func() {
		if !ok {
			release()
		}
	}()

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("native whisper: create context: %w", err)
	}
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		p.log.Warn().Err(err).Str("language", lang).Msg("failed to set language, using model default")
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	if opts.Temperature > 0 {
		wctx.SetTemperature(float32(opts.Temperature))
	}
	if opts.Prompt != "" {
		wctx.SetInitialPrompt(opts.Prompt)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("native whisper: process audio: %w", err)
	}

	ok = true
	return &nativeStream{
		release: release,
		wctx:    wctx,
		samples: samples,
		vad:     opts.VadFilter,
		info:    Info{Duration: durationPtr(samplesDuration(samples)), Language: lang},
		log:     p.log,
	}, nil
}

type nativeStream struct {
	release func()
	wctx    whisperlib.Context
	samples []float32
	vad     bool
	info    Info
	log     zerolog.Logger
}

func (s *nativeStream) Next() (Segment, error) {
	for {
		seg, err := s.wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			return Segment{}, io.EOF
		}
		if err != nil {
			return Segment{}, fmt.Errorf("native whisper: read segment: %w", err)
		}
		start, end := seg.Start.Seconds(), seg.End.Seconds()
		if s.vad && !hasSpeech(s.samples, start, end) {
			s.log.Debug().Float64("start", start).Float64("end", end).Msg("dropping silent segment")
			continue
		}
		return Segment{Start: start, End: end, Text: seg.Text}, nil
	}
}

func (s *nativeStream) Info() Info { return s.info }

// Close releases the provider for the next request. Safe to call twice.
func (s *nativeStream) Close() error {
	s.samples = nil
	s.release()
	return nil
}
