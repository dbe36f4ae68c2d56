package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":5001"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken      string   `env:"AUTH_TOKEN"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:","`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"5"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	SourceLanguage    string `env:"SOURCE_LANGUAGE" envDefault:"en"`
	DefaultTargetLang string `env:"DEFAULT_TARGET_LANG" envDefault:"en"`

	// Speech recognition
	STTProvider        string        `env:"STT_PROVIDER" envDefault:"whisper"`
	WhisperURL         string        `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1/audio/transcriptions"`
	WhisperModel       string        `env:"WHISPER_MODEL" envDefault:"small"`
	WhisperComputeType string        `env:"WHISPER_COMPUTE_TYPE" envDefault:"int8"`
	WhisperAPIKey      string        `env:"WHISPER_API_KEY"`
	WhisperTimeout     time.Duration `env:"WHISPER_TIMEOUT" envDefault:"30m"`
	WhisperModelPath   string        `env:"WHISPER_MODEL_PATH"`
	WhisperThreads     int           `env:"WHISPER_THREADS" envDefault:"0"`
	WhisperBeamSize    int           `env:"WHISPER_BEAM_SIZE" envDefault:"0"`
	WhisperPrompt      string        `env:"WHISPER_PROMPT"`
	VADFilter          bool          `env:"VAD_FILTER" envDefault:"true"`
	DeepInfraAPIKey    string        `env:"DEEPINFRA_API_KEY"`
	DeepInfraModel     string        `env:"DEEPINFRA_MODEL" envDefault:"openai/whisper-large-v3-turbo"`
	ElevenLabsAPIKey   string        `env:"ELEVENLABS_API_KEY"`
	ElevenLabsModel    string        `env:"ELEVENLABS_MODEL" envDefault:"scribe_v1"`
	ElevenLabsKeyterms string        `env:"ELEVENLABS_KEYTERMS"`

	// Translation
	TranslateProviders    []string      `env:"TRANSLATE_PROVIDERS" envSeparator:"," envDefault:"google"`
	GoogleTranslateURL    string        `env:"GOOGLE_TRANSLATE_URL"`
	TranslateTimeout      time.Duration `env:"TRANSLATE_TIMEOUT" envDefault:"15s"`
	OpenAIAPIKey          string        `env:"OPENAI_API_KEY"`
	OpenAIModel           string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL         string        `env:"OPENAI_BASE_URL"`
	TranslateBreakerFails int           `env:"TRANSLATE_BREAKER_FAILURES" envDefault:"5"`
	TranslateBreakerReset time.Duration `env:"TRANSLATE_BREAKER_RESET" envDefault:"30s"`

	// Acquisition
	YtDlpPath         string   `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	FFmpegPath        string   `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	TempDir           string   `env:"TEMP_DIR"`
	MaxUploadMB       int64    `env:"MAX_UPLOAD_MB" envDefault:"500"`
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS" envSeparator:"," envDefault:".mp4,.mov,.mkv,.mp3,.wav"`

	// Events (optional)
	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"autosubs"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"autosubs"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	TracingEnabled bool `env:"TRACING_ENABLED" envDefault:"false"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile       string
	HTTPAddr      string
	LogLevel      string
	STTProvider   string
	WhisperURL    string
	MQTTBrokerURL string
	TempDir       string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.STTProvider != "" {
		cfg.STTProvider = overrides.STTProvider
	}
	if overrides.WhisperURL != "" {
		cfg.WhisperURL = overrides.WhisperURL
	}
	if overrides.MQTTBrokerURL != "" {
		cfg.MQTTBrokerURL = overrides.MQTTBrokerURL
	}
	if overrides.TempDir != "" {
		cfg.TempDir = overrides.TempDir
	}

	cfg.STTProvider = strings.ToLower(strings.TrimSpace(cfg.STTProvider))
	cfg.TranslateProviders = normalizeList(cfg.TranslateProviders)

	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch c.STTProvider {
	case "whisper":
		if c.WhisperURL == "" {
			errs = append(errs, errors.New("STT_PROVIDER=whisper requires WHISPER_URL"))
		}
	case "deepinfra":
		if c.DeepInfraAPIKey == "" {
			errs = append(errs, errors.New("STT_PROVIDER=deepinfra requires DEEPINFRA_API_KEY"))
		}
	case "elevenlabs":
		if c.ElevenLabsAPIKey == "" {
			errs = append(errs, errors.New("STT_PROVIDER=elevenlabs requires ELEVENLABS_API_KEY"))
		}
	case "native":
		if c.WhisperModelPath == "" {
			errs = append(errs, errors.New("STT_PROVIDER=native requires WHISPER_MODEL_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STT_PROVIDER %q", c.STTProvider))
	}

	for _, p := range c.TranslateProviders {
		switch p {
		case "google":
		case "openai":
			if c.OpenAIAPIKey == "" {
				errs = append(errs, errors.New("TRANSLATE_PROVIDERS=openai requires OPENAI_API_KEY"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown translate provider %q", p))
		}
	}

	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS))
	}

	return errors.Join(errs...)
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func normalizeList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
