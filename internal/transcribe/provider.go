package transcribe

import (
	"context"
	"io"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	// Transcribe opens a segment stream over the audio at audioPath. The
	// stream yields segments in recognizer order; the caller must Close it.
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (SegmentStream, error)
	Name() string  // "whisper", "deepinfra", "elevenlabs", "native"
	Model() string // model identifier for logs and health
}

// TranscribeOpts are per-request recognizer options. Zero-value fields are
// omitted from HTTP requests so servers fall back to their own defaults.
type TranscribeOpts struct {
	Language    string
	VadFilter   bool
	Temperature float64
	Prompt      string // initial_prompt / domain vocabulary
	BeamSize    int    // 0 = server default
}

// Segment is one recognized utterance. Offsets are seconds from the start of
// the audio; Text is untrimmed.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Info is stream metadata. Duration is nil when the backend does not report it.
type Info struct {
	Duration *float64
	Language string
}

// SegmentStream is a lazy, ordered source of segments. Next returns io.EOF
// once the stream is exhausted; any other error is fatal for the stream.
type SegmentStream interface {
	Next() (Segment, error)
	Info() Info
	Close() error
}

// sliceStream serves segments already decoded from an HTTP response.
type sliceStream struct {
	segs []Segment
	pos  int
	info Info
}

// NewSliceStream returns a SegmentStream over segs.
func NewSliceStream(segs []Segment, info Info) SegmentStream {
	return &sliceStream{segs: segs, info: info}
}

func (s *sliceStream) Next() (Segment, error) {
	if s.pos >= len(s.segs) {
		return Segment{}, io.EOF
	}
	seg := s.segs[s.pos]
	s.pos++
	return seg, nil
}

func (s *sliceStream) Info() Info   { return s.info }
func (s *sliceStream) Close() error { return nil }

func durationPtr(d float64) *float64 {
	if d <= 0 {
		return nil
	}
	return &d
}
