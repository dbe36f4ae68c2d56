// Package caption renders timed segments as SRT and WebVTT documents.
package caption

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidTimestamp is returned for negative, NaN or infinite offsets.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrUnknownFormat is returned for a format tag other than SRT or VTT.
	ErrUnknownFormat = errors.New("unknown caption format")
)

// Segment is one timed line of caption text. Offsets are in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Format selects the caption document type.
type Format int

const (
	FormatSRT Format = iota + 1
	FormatVTT
)

func (f Format) String() string {
	switch f {
	case FormatSRT:
		return "srt"
	case FormatVTT:
		return "vtt"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type for serving a document of this format.
func (f Format) ContentType() string {
	if f == FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "application/x-subrip; charset=utf-8"
}

// ParseFormat maps "srt" or "vtt" (any case) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// SRTTimestamp formats t seconds as HH:MM:SS,mmm.
func SRTTimestamp(t float64) (string, error) { return timestamp(t, ',') }

// VTTTimestamp formats t seconds as HH:MM:SS.mmm.
func VTTTimestamp(t float64) (string, error) { return timestamp(t, '.') }

// timestamp truncates the fractional part to whole milliseconds; it never
// rounds, so 1.9999 renders as second 1, millisecond 999. The hour field
// widens past 99 instead of wrapping.
func timestamp(t float64, sep byte) (string, error) {
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidTimestamp, t)
	}
	whole := math.Floor(t)
	secs := int64(whole)
	ms := int64((t - whole) * 1000)

	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms), nil
}

// Render produces the complete document for segs in the given format.
// Segments are written in the order given. Any invalid timestamp fails the
// whole render.
func Render(segs []Segment, f Format) (string, error) {
	switch f {
	case FormatSRT:
		return renderSRT(segs)
	case FormatVTT:
		return renderVTT(segs)
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownFormat, f)
}

func renderSRT(segs []Segment) (string, error) {
	var b strings.Builder
	for i, seg := range segs {
		start, end, err := span(seg, SRTTimestamp)
		if err != nil {
			return "", fmt.Errorf("segment %d: %w", i+1, err)
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, start, end, strings.TrimSpace(seg.Text))
	}
	return b.String(), nil
}

func renderVTT(segs []Segment) (string, error) {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, seg := range segs {
		start, end, err := span(seg, VTTTimestamp)
		if err != nil {
			return "", fmt.Errorf("segment %d: %w", i+1, err)
		}
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n", start, end, strings.TrimSpace(seg.Text))
	}
	return b.String(), nil
}

func span(seg Segment, format func(float64) (string, error)) (string, string, error) {
	start, err := format(seg.Start)
	if err != nil {
		return "", "", fmt.Errorf("start: %w", err)
	}
	end, err := format(seg.End)
	if err != nil {
		return "", "", fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}
