package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/autosubs/internal/metrics"
)

// Stage is a request's position in the pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageAcquiringAudio
	StageRecognizing
	StageTranslating
	StageRendering
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAcquiringAudio:
		return "acquiring_audio"
	case StageRecognizing:
		return "recognizing"
	case StageTranslating:
		return "translating"
	case StageRendering:
		return "rendering"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// tracker logs and times stage transitions for one request.
type tracker struct {
	stage   Stage
	entered time.Time
	log     zerolog.Logger
	now     func() time.Time
}

func newTracker(log zerolog.Logger) *tracker {
	return &tracker{stage: StageIdle, entered: time.Now(), log: log, now: time.Now}
}

// to records time spent in the current stage and moves to next.
func (t *tracker) to(next Stage) {
	now := t.now()
	elapsed := now.Sub(t.entered)
	if t.stage != StageIdle {
		metrics.PipelineStageDuration.WithLabelValues(t.stage.String()).Observe(elapsed.Seconds())
	}
	t.log.Debug().
		Str("from", t.stage.String()).
		Str("to", next.String()).
		Dur("elapsed", elapsed).
		Msg("stage transition")
	t.stage = next
	t.entered = now
}

func (t *tracker) current() Stage { return t.stage }
