package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/snarg/autosubs/internal/apperr"
	"github.com/snarg/autosubs/internal/media"
	"github.com/snarg/autosubs/internal/metrics"
	"github.com/snarg/autosubs/internal/tracing"
	"github.com/snarg/autosubs/internal/transcribe"
)

const (
	EventCompleted = "transcription.completed"
	EventFailed    = "transcription.failed"

	SourceURL    = "url"
	SourceUpload = "upload"
)

// EventPublishFunc is a callback for publishing completion events.
type EventPublishFunc func(event string, payload any) error

// Event is the payload of a completion event.
type Event struct {
	JobID     string   `json:"job_id"`
	Source    string   `json:"source"`
	Language  string   `json:"language"`
	Segments  int      `json:"segments"`
	Fallbacks int      `json:"translation_fallbacks"`
	Duration  *float64 `json:"duration"`
	ElapsedMs int64    `json:"elapsed_ms"`
	Error     string   `json:"error,omitempty"`
}

// Acquirer produces a normalized WAV inside a workspace.
type Acquirer interface {
	FromURL(ctx context.Context, url string, ws *media.Workspace) (string, error)
	FromUpload(ctx context.Context, up media.Upload, ws *media.Workspace) (string, error)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Acquirer      Acquirer
	Orchestrator  *Orchestrator
	TempDir       string // "" = os.TempDir()
	DefaultTarget string
	PublishEvent  EventPublishFunc // may be nil
	Log           zerolog.Logger
}

// Service is the request-level entry point: validate, acquire, run, clean up.
type Service struct {
	acquirer      Acquirer
	orch          *Orchestrator
	tempDir       string
	defaultTarget string
	publish       EventPublishFunc
	log           zerolog.Logger

	inFlight atomic.Int64
}

func NewService(opts ServiceOptions) *Service {
	target := strings.ToLower(strings.TrimSpace(opts.DefaultTarget))
	if target == "" {
		target = "en"
	}
	return &Service{
		acquirer:      opts.Acquirer,
		orch:          opts.Orchestrator,
		tempDir:       opts.TempDir,
		defaultTarget: target,
		publish:       opts.PublishEvent,
		log:           opts.Log,
	}
}

// InFlight returns the number of requests currently running.
func (s *Service) InFlight() int64 { return s.inFlight.Load() }

// Recognizer returns the injected recognizer.
func (s *Service) Recognizer() transcribe.Provider { return s.orch.recognizer }

// ResolveTarget applies the default to an empty target and lowercases it.
// Codes are passed through as requested; an unsupported code degrades to
// untranslated captions instead of failing the request.
func (s *Service) ResolveTarget(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return s.defaultTarget
	}
	return raw
}

// TranscribeURL downloads url and transcribes it.
func (s *Service) TranscribeURL(ctx context.Context, url, target string) (*Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, apperr.Input("transcribe", "missing 'url' parameter")
	}
	return s.execute(ctx, SourceURL, target, func(ctx context.Context, ws *media.Workspace) (string, error) {
		return s.acquirer.FromURL(ctx, url, ws)
	})
}

// TranscribeUpload converts an uploaded file and transcribes it.
func (s *Service) TranscribeUpload(ctx context.Context, up media.Upload, target string) (*Result, error) {
	if up.Body == nil || strings.TrimSpace(up.Filename) == "" {
		return nil, apperr.New(apperr.KindInput, "upload", media.ErrMissingFile)
	}
	return s.execute(ctx, SourceUpload, target, func(ctx context.Context, ws *media.Workspace) (string, error) {
		return s.acquirer.FromUpload(ctx, up, ws)
	})
}

type acquireFunc func(ctx context.Context, ws *media.Workspace) (string, error)

func (s *Service) execute(ctx context.Context, source, rawTarget string, acquire acquireFunc) (*Result, error) {
	start := time.Now()
	jobID := uuid.NewString()
	log := s.log.With().Str("job_id", jobID).Str("source", source).Logger()
	tr := newTracker(log)

	target := s.ResolveTarget(rawTarget)

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	ws, err := media.NewWorkspace(s.tempDir, "autosubs")
	if err != nil {
		err = apperr.New(apperr.KindAcquisition, "workspace", err)
		tr.to(StageFailed)
		s.finish(jobID, source, target, start, nil, err)
		return nil, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("dir", ws.Dir()).Msg("failed to remove workspace")
		}
	}()

	tr.to(StageAcquiringAudio)
	actx, span := tracing.StartSpan(ctx, "pipeline.acquire")
	span.SetAttributes(attribute.String("source", source))
	audioPath, err := acquire(actx, ws)
	if err != nil {
		span.RecordError(err)
		span.End()
		err = classifyAcquireError(err)
		tr.to(StageFailed)
		s.finish(jobID, source, target, start, nil, err)
		return nil, err
	}
	span.End()

	res, err := s.orch.run(ctx, audioPath, target, tr)
	s.finish(jobID, source, target, start, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func classifyAcquireError(err error) error {
	for _, input := range []error{
		media.ErrMissingFile,
		media.ErrDisallowedExtension,
		media.ErrEmptyUpload,
		media.ErrUploadTooLarge,
	} {
		if errors.Is(err, input) {
			return apperr.New(apperr.KindInput, "upload", err)
		}
	}
	return apperr.New(apperr.KindAcquisition, "acquire", err)
}

// finish records metrics, logs the outcome and publishes the event.
func (s *Service) finish(jobID, source, target string, start time.Time, res *Result, err error) {
	elapsed := time.Since(start)
	ev := Event{
		JobID:     jobID,
		Source:    source,
		Language:  target,
		ElapsedMs: elapsed.Milliseconds(),
	}

	event := EventCompleted
	outcome := "success"
	if err != nil {
		event = EventFailed
		outcome = apperr.KindOf(err).String()
		ev.Error = err.Error()
		s.log.Error().Err(err).
			Str("job_id", jobID).
			Str("source", source).
			Str("kind", outcome).
			Dur("elapsed", elapsed).
			Msg("transcription failed")
	} else {
		ev.Segments = len(res.Segments)
		ev.Fallbacks = res.Translation.Fallback
		ev.Duration = res.Duration
		s.log.Info().
			Str("job_id", jobID).
			Str("source", source).
			Str("language", target).
			Int("segments", ev.Segments).
			Int("translation_fallbacks", ev.Fallbacks).
			Dur("elapsed", elapsed).
			Msg("transcription complete")
	}
	metrics.PipelineRunsTotal.WithLabelValues(source, outcome).Inc()

	if s.publish == nil {
		return
	}
	if perr := s.publish(event, ev); perr != nil {
		s.log.Warn().Err(perr).Str("event", event).Str("job_id", jobID).Msg("failed to publish event")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(event).Inc()
}
