package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/snarg/autosubs/internal/api"
	"github.com/snarg/autosubs/internal/config"
	"github.com/snarg/autosubs/internal/media"
	"github.com/snarg/autosubs/internal/metrics"
	"github.com/snarg/autosubs/internal/mqttclient"
	"github.com/snarg/autosubs/internal/pipeline"
	"github.com/snarg/autosubs/internal/resilience"
	"github.com/snarg/autosubs/internal/tracing"
	"github.com/snarg/autosubs/internal/transcribe"
	"github.com/snarg/autosubs/internal/translate"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&overrides.STTProvider, "stt", "", "speech recognizer (whisper, deepinfra, elevenlabs, native)")
	flag.StringVar(&overrides.WhisperURL, "whisper-url", "", "whisper transcription endpoint")
	flag.StringVar(&overrides.MQTTBrokerURL, "mqtt-broker", "", "MQTT broker URL for completion events")
	flag.StringVar(&overrides.TempDir, "temp-dir", "", "directory for per-request workspaces")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("autosubs starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	if cfg.TracingEnabled {
		shutdownTracing, err := tracing.Init(ctx, tracing.Config{
			ServiceName:    "autosubs",
			ServiceVersion: version,
			Writer:         os.Stderr,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize tracing")
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				log.Warn().Err(err).Msg("tracing shutdown error")
			}
		}()
	}

	// Speech recognizer
	sttLog := log.With().Str("component", "transcribe").Logger()
	recognizer, closer, err := transcribe.NewProvider(transcribe.ProviderOptions{
		Provider:           cfg.STTProvider,
		WhisperURL:         cfg.WhisperURL,
		WhisperModel:       cfg.WhisperModel,
		WhisperComputeType: cfg.WhisperComputeType,
		WhisperAPIKey:      cfg.WhisperAPIKey,
		Timeout:            cfg.WhisperTimeout,
		DeepInfraAPIKey:    cfg.DeepInfraAPIKey,
		DeepInfraModel:     cfg.DeepInfraModel,
		ElevenLabsAPIKey:   cfg.ElevenLabsAPIKey,
		ElevenLabsModel:    cfg.ElevenLabsModel,
		ElevenLabsKeyterms: cfg.ElevenLabsKeyterms,
		ModelPath:          cfg.WhisperModelPath,
		Threads:            cfg.WhisperThreads,
	}, sttLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create speech recognizer")
	}
	defer closer.Close()
	log.Info().Str("provider", recognizer.Name()).Str("model", recognizer.Model()).Msg("speech recognizer ready")

	// Translation
	trLog := log.With().Str("component", "translate").Logger()
	providers, err := buildTranslators(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create translators")
	}
	var chain translate.Translator
	if len(providers) > 0 {
		chain = translate.NewChain(resilience.BreakerOptions{
			MaxFailures:  cfg.TranslateBreakerFails,
			ResetTimeout: cfg.TranslateBreakerReset,
			Log:          trLog,
		}, providers...)
		log.Info().Str("providers", chain.Name()).Msg("translation enabled")
	} else {
		log.Warn().Msg("no translate providers configured, captions stay in the source language")
	}
	segTranslator := translate.NewSegmentTranslator(chain, cfg.SourceLanguage, trLog)

	// Acquisition
	for _, bin := range []string{cfg.YtDlpPath, cfg.FFmpegPath} {
		if err := media.CheckBinary(bin); err != nil {
			log.Warn().Err(err).Msg("external tool unavailable")
		}
	}
	acquirer := &media.Acquirer{
		YtDlp:  &media.YtDlp{Path: cfg.YtDlpPath},
		FFmpeg: &media.FFmpeg{Path: cfg.FFmpegPath},
		Policy: media.UploadPolicy{
			Extensions: cfg.AllowedExtensions,
			MaxBytes:   cfg.MaxUploadBytes(),
		},
	}

	// Events
	var mqtt *mqttclient.Client
	var publish pipeline.EventPublishFunc
	if cfg.MQTTBrokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			Log:         mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()
		publish = mqtt.Publish
	}

	// Pipeline
	pipeLog := log.With().Str("component", "pipeline").Logger()
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Recognizer: recognizer,
		Translator: segTranslator,
		VadFilter:  cfg.VADFilter,
		BeamSize:   cfg.WhisperBeamSize,
		Prompt:     cfg.WhisperPrompt,
		Log:        pipeLog,
	})
	svc := pipeline.NewService(pipeline.ServiceOptions{
		Acquirer:      acquirer,
		Orchestrator:  orch,
		TempDir:       cfg.TempDir,
		DefaultTarget: cfg.DefaultTargetLang,
		PublishEvent:  publish,
		Log:           pipeLog,
	})

	// Metrics
	var conn metrics.ConnState
	if mqtt != nil {
		conn = mqtt
	}
	if cfg.MetricsEnabled {
		prometheus.MustRegister(metrics.NewCollector(svc, conn))
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	health := api.NewHealthHandler(recognizer, conn, svc, []string{cfg.YtDlpPath, cfg.FFmpegPath}, version, startTime)
	srv := api.NewServer(api.ServerOptions{
		Config:  cfg,
		Service: svc,
		Health:  health,
		Log:     httpLog,
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("autosubs stopped")
}

// buildTranslators creates the configured translation providers in order.
func buildTranslators(cfg *config.Config) ([]translate.Translator, error) {
	var out []translate.Translator
	for _, name := range cfg.TranslateProviders {
		switch name {
		case "google":
			out = append(out, translate.NewGoogleClient(cfg.GoogleTranslateURL, cfg.TranslateTimeout))
		case "openai":
			c, err := translate.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.TranslateTimeout)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		default:
			return nil, fmt.Errorf("unknown translate provider %q", name)
		}
	}
	return out, nil
}
