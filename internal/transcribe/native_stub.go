//go:build !whisper || !cgo

package transcribe

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

var errNativeUnavailable = errors.New("native whisper requires building with -tags whisper and cgo enabled")

// NativeProvider is unavailable unless built with the whisper tag.
type NativeProvider struct{}

func NewNative(modelPath string, threads int, log zerolog.Logger) (*NativeProvider, error) {
	return nil, errNativeUnavailable
}

func (p *NativeProvider) Name() string  { return "native" }
func (p *NativeProvider) Model() string { return "" }
func (p *NativeProvider) Close() error  { return nil }

func (p *NativeProvider) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (SegmentStream, error) {
	return nil, errNativeUnavailable
}
