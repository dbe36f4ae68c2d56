// Package pipeline drives one transcription from a normalized audio file to
// finished caption documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/snarg/autosubs/internal/apperr"
	"github.com/snarg/autosubs/internal/caption"
	"github.com/snarg/autosubs/internal/metrics"
	"github.com/snarg/autosubs/internal/tracing"
	"github.com/snarg/autosubs/internal/transcribe"
	"github.com/snarg/autosubs/internal/translate"
)

// Result is the response payload for a finished transcription.
type Result struct {
	Segments []caption.Segment `json:"segments"`
	SRT      string            `json:"srt"`
	VTT      string            `json:"vtt"`
	Duration *float64          `json:"duration"`
	Language string            `json:"language"`

	Translation TranslationStats `json:"-"`
}

// TranslationStats counts per-segment translation outcomes.
type TranslationStats struct {
	Unchanged  int
	Translated int
	Fallback   int
}

// Orchestrator runs the recognizer over an audio file and turns its output
// into captions. It is safe for concurrent use if its recognizer is.
type Orchestrator struct {
	recognizer transcribe.Provider
	translator *translate.SegmentTranslator
	opts       transcribe.TranscribeOpts
	log        zerolog.Logger
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Recognizer transcribe.Provider
	Translator *translate.SegmentTranslator
	VadFilter  bool
	BeamSize   int
	Prompt     string
	Log        zerolog.Logger
}

// NewOrchestrator creates an Orchestrator. A nil Translator keeps every
// segment in the source language.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Translator == nil {
		opts.Translator = translate.NewSegmentTranslator(nil, "en", opts.Log)
	}
	return &Orchestrator{
		recognizer: opts.Recognizer,
		translator: opts.Translator,
		opts: transcribe.TranscribeOpts{
			Language:  opts.Translator.Source(),
			VadFilter: opts.VadFilter,
			BeamSize:  opts.BeamSize,
			Prompt:    opts.Prompt,
		},
		log: opts.Log,
	}
}

// Run transcribes audioPath and translates each segment into target. A
// recognizer failure aborts the run with a KindRecognition error and no
// partial result; translation failures never do. Once started, recognition
// and translation ignore cancellation of ctx.
func (o *Orchestrator) Run(ctx context.Context, audioPath, target string) (*Result, error) {
	return o.run(ctx, audioPath, target, newTracker(o.log))
}

func (o *Orchestrator) run(ctx context.Context, audioPath, target string, tr *tracker) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	tr.to(StageRecognizing)
	raw, info, err := o.recognize(ctx, audioPath)
	if err != nil {
		tr.to(StageFailed)
		return nil, err
	}

	tr.to(StageTranslating)
	segs, stats := o.translateAll(ctx, raw, target)

	tr.to(StageRendering)
	_, span := tracing.StartSpan(ctx, "pipeline.render")
	res, err := render(segs, target)
	span.End()
	if err != nil {
		tr.to(StageFailed)
		return nil, err
	}
	res.Duration = info.Duration
	res.Translation = stats

	metrics.SegmentsTotal.Add(float64(len(segs)))
	tr.to(StageDone)
	return res, nil
}

func (o *Orchestrator) recognize(ctx context.Context, audioPath string) ([]transcribe.Segment, transcribe.Info, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.recognize")
	defer span.End()
	span.SetAttributes(
		attribute.String("recognizer", o.recognizer.Name()),
		attribute.String("model", o.recognizer.Model()),
	)

	stream, err := o.recognizer.Transcribe(ctx, audioPath, o.opts)
	if err != nil {
		span.RecordError(err)
		return nil, transcribe.Info{}, apperr.New(apperr.KindRecognition, "recognize", err)
	}
	defer stream.Close()

	raw, err := collect(stream, o.log)
	if err != nil {
		span.RecordError(err)
		return nil, transcribe.Info{}, apperr.New(apperr.KindRecognition, "recognize", err)
	}
	span.SetAttributes(attribute.Int("segments", len(raw)))
	return raw, stream.Info(), nil
}

// collect drains stream in order. Timestamps that are negative, NaN or
// infinite are rejected; an end before its start is kept as reported.
func collect(stream transcribe.SegmentStream, log zerolog.Logger) ([]transcribe.Segment, error) {
	var out []transcribe.Segment
	for {
		seg, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", len(out)+1, err)
		}
		if !validOffset(seg.Start) || !validOffset(seg.End) {
			return nil, fmt.Errorf("segment %d: invalid timestamps [%v, %v]", len(out)+1, seg.Start, seg.End)
		}
		if seg.End < seg.Start {
			log.Debug().
				Int("index", len(out)+1).
				Float64("start", seg.Start).
				Float64("end", seg.End).
				Msg("segment ends before it starts")
		}
		out = append(out, seg)
	}
}

func validOffset(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (o *Orchestrator) translateAll(ctx context.Context, raw []transcribe.Segment, target string) ([]caption.Segment, TranslationStats) {
	var stats TranslationStats
	segs := make([]caption.Segment, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(r.Text)
		out := o.translator.Translate(ctx, text, target)
		switch out.Result {
		case translate.Translated:
			stats.Translated++
		case translate.Fallback:
			stats.Fallback++
		default:
			stats.Unchanged++
		}
		metrics.TranslationsTotal.WithLabelValues(out.Result.String()).Inc()
		segs = append(segs, caption.Segment{Start: r.Start, End: r.End, Text: out.Text})
	}
	return segs, stats
}

func render(segs []caption.Segment, target string) (*Result, error) {
	srt, err := caption.Render(segs, caption.FormatSRT)
	if err != nil {
		return nil, apperr.New(apperr.KindRecognition, "render srt", err)
	}
	vtt, err := caption.Render(segs, caption.FormatVTT)
	if err != nil {
		return nil, apperr.New(apperr.KindRecognition, "render vtt", err)
	}
	return &Result{Segments: segs, SRT: srt, VTT: vtt, Language: target}, nil
}
