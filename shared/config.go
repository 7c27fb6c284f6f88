package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Environment variable keys
const (
	EnvKeyConfigFile    = "VOICERAG_CONFIG"
	EnvKeyEndpoint      = "VOICERAG_ENDPOINT"
	EnvKeyLogFile       = "VOICERAG_LOG_FILE"
	EnvKeyLogLevel      = "VOICERAG_LOG_LEVEL"
	EnvKeyInstructions  = "VOICERAG_INSTRUCTIONS"
	EnvKeyProbe         = "VOICERAG_PROBE"
	EnvKeyProbeTimeout  = "VOICERAG_PROBE_TIMEOUT"
	EnvKeySampleRate    = "VOICERAG_SAMPLE_RATE"
	EnvKeyProduction    = "RUNNING_IN_PRODUCTION"
	defaultEndpoint     = "ws://localhost:8765/realtime"
	defaultLogFile      = "voicerag.log"
	defaultProbeTimeout = 3 * time.Second
)

// StderrLogFile as log.file sends logs to stderr instead of a file.
const StderrLogFile = "-"

type Config struct {
	Endpoint     string        `yaml:"endpoint" validate:"required,wsurl"`
	Probe        bool          `yaml:"probe"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" validate:"gte=0"`
	Log          LogConfig     `yaml:"log"`
	Audio        AudioConfig   `yaml:"audio"`
	Session      SessionConfig `yaml:"session"`
}

type LogConfig struct {
	File       string `yaml:"file" validate:"required"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
}

type AudioConfig struct {
	SampleRate        int `yaml:"sample_rate" validate:"gte=8000,lte=48000"`
	Channels          int `yaml:"channels" validate:"oneof=1 2"`
	PlaybackBufferMs  int `yaml:"playback_buffer_ms" validate:"gte=10"`
	RingBufferSeconds int `yaml:"ring_buffer_seconds" validate:"gte=1"`
}

type SessionConfig struct {
	Instructions                  string  `yaml:"instructions"`
	EnableInputAudioTranscription bool    `yaml:"enable_input_audio_transcription"`
	TranscriptionModel            string  `yaml:"transcription_model" validate:"required_if=EnableInputAudioTranscription true"`
	TranscriptionLanguage         string  `yaml:"transcription_language" validate:"omitempty,len=2"`
	Voice                         string  `yaml:"voice"`
	VADEagerness                  string  `yaml:"vad_eagerness" validate:"omitempty,oneof=low medium high auto"`
	OutputSpeed                   float64 `yaml:"output_speed" validate:"omitempty,gte=0.25,lte=1.5"`
	MaxOutputTokens               int64   `yaml:"max_output_tokens" validate:"gte=0"`
}

func DefaultConfig() *Config {
	return &Config{
		Endpoint:     defaultEndpoint,
		Probe:        true,
		ProbeTimeout: defaultProbeTimeout,
		Log: LogConfig{
			File:       defaultLogFile,
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 3,
			Level:      "info",
		},
		Audio: AudioConfig{
			SampleRate:        24000,
			Channels:          1,
			PlaybackBufferMs:  100,
			RingBufferSeconds: 30,
		},
		Session: SessionConfig{
			EnableInputAudioTranscription: true,
			TranscriptionModel:            "whisper-1",
			VADEagerness:                  "medium",
		},
	}
}

// LoadDotenv loads .env from the working directory outside production.
// A missing file is not an error.
func LoadDotenv() (loaded bool, err error) {
	if os.Getenv(EnvKeyProduction) != "" {
		return false, nil
	}
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("loading .env: %w", err)
	}
	return true, nil
}

// LoadConfig decodes the YAML file at path on top of DefaultConfig, applies
// environment overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
		if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("decoding config %q: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() (err error) {
	if c.Endpoint, err = Getenv(GetenvString, EnvKeyEndpoint, false, c.Endpoint); err != nil {
		return err
	}
	if c.Log.File, err = Getenv(GetenvString, EnvKeyLogFile, false, c.Log.File); err != nil {
		return err
	}
	if c.Log.Level, err = Getenv(GetenvString, EnvKeyLogLevel, false, c.Log.Level); err != nil {
		return err
	}
	if c.Session.Instructions, err = Getenv(GetenvString, EnvKeyInstructions, false, c.Session.Instructions); err != nil {
		return err
	}
	if c.Probe, err = Getenv(GetenvBool, EnvKeyProbe, false, c.Probe); err != nil {
		return err
	}
	if c.ProbeTimeout, err = Getenv(GetenvDuration, EnvKeyProbeTimeout, false, c.ProbeTimeout); err != nil {
		return err
	}
	if c.Audio.SampleRate, err = Getenv(GetenvInt, EnvKeySampleRate, false, c.Audio.SampleRate); err != nil {
		return err
	}
	return nil
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("wsurl", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		if err != nil || u.Host == "" {
			return false
		}
		return u.Scheme == "ws" || u.Scheme == "wss"
	})
	return v
}

func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) LogLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
