package transcribe

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
)

const (
	// SampleRate is the rate the recognizers expect; the acquisition stage
	// resamples everything to it.
	SampleRate = 16000

	// rmsThreshold is on the int16 sample scale; frames below it are silence.
	rmsThreshold = 300.0
	vadFrameMs   = 30
)

// decodeWAV reads a 16 kHz PCM WAV file into mono float32 samples in
// [-1, 1]. Multi-channel input is down-mixed by averaging.
func decodeWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format.SampleRate != SampleRate {
		return nil, fmt.Errorf("decode wav: sample rate %d, want %d", buf.Format.SampleRate, SampleRate)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}
	scale := float32(int64(1) << (depth - 1))
	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		out[i] = sum / float32(channels)
	}
	return out, nil
}

// computeRMS returns the root-mean-square energy of samples on the int16 scale.
func computeRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) * 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// hasSpeech reports whether any frame of samples in [start, end) seconds
// rises above the silence threshold.
func hasSpeech(samples []float32, start, end float64) bool {
	lo := int(start * SampleRate)
	hi := int(end * SampleRate)
	if lo < 0 {
		lo = 0
	}
	if hi > len(samples) {
		hi = len(samples)
	}
	if lo >= hi {
		return false
	}
	frame := SampleRate * vadFrameMs / 1000
	for i := lo; i < hi; i += frame {
		j := min(i+frame, hi)
		if computeRMS(samples[i:j]) >= rmsThreshold {
			return true
		}
	}
	return false
}

func samplesDuration(samples []float32) float64 {
	return float64(len(samples)) / SampleRate
}
