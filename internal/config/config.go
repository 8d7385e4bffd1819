// Package config loads the orb configuration: a YAML file, then environment
// overrides, then validation. The result is an immutable snapshot for the
// lifetime of the process.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

// Wake-word engines understood by the trigger package.
const (
	EngineMock = "mock"
)

type Config struct {
	StopKeyword string `yaml:"stop_keyword"`

	AmbientVolumeNormal float64 `yaml:"ambient_volume_normal"`
	AmbientVolumeDucked float64 `yaml:"ambient_volume_ducked"`
	AmbientFadeSeconds  float64 `yaml:"ambient_fade_seconds"`

	SilenceSeconds             float64 `yaml:"silence_seconds"`
	MaxRecordSeconds           float64 `yaml:"max_record_seconds"`
	SilenceThreshold           float64 `yaml:"silence_threshold"` // fixed RMS threshold; 0 calibrates
	SilenceThresholdMultiplier float64 `yaml:"silence_threshold_multiplier"`
	CalibrationSeconds         float64 `yaml:"calibration_seconds"`
	RecordSampleRate           int     `yaml:"record_sample_rate"`
	RecordBlocksize            int     `yaml:"record_blocksize"`
	OutputSampleRate           int     `yaml:"output_sample_rate"`

	GPIO     GPIOConfig     `yaml:"gpio"`
	LEDs     LEDConfig      `yaml:"leds"`
	WakeWord WakeWordConfig `yaml:"wake_word"`
	Models   ModelConfig    `yaml:"models"`
	Remote   RemoteConfig   `yaml:"remote"`
	Paths    PathConfig     `yaml:"paths"`
	DryRun   DryRunConfig   `yaml:"dry_run"`

	ChatSystemPrompt string `yaml:"chat_system_prompt"`

	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
	LogLevel string `yaml:"log_level"`

	// TraceSpans installs a tracer provider that logs finished spans.
	TraceSpans bool `yaml:"trace_spans"`
}

type GPIOConfig struct {
	Chip               string  `yaml:"chip"`
	PinTouch           int     `yaml:"pin_touch"`
	TouchBounceSeconds float64 `yaml:"touch_bounce_seconds"`
}

type LEDConfig struct {
	Count      int     `yaml:"count"`
	Brightness float64 `yaml:"brightness"`
	TickHz     float64 `yaml:"tick_hz"`
}

type WakeWordConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Keyword         string  `yaml:"keyword"`
	Engine          string  `yaml:"engine"`
	AllowTouch      bool    `yaml:"allow_touch"`
	CooldownSeconds float64 `yaml:"cooldown_seconds"`
}

type ModelConfig struct {
	Transcribe string `yaml:"transcribe"`
	Chat       string `yaml:"chat"`
	TTS        string `yaml:"tts"`
	Voice      string `yaml:"voice"`
}

type RemoteConfig struct {
	TimeoutSeconds      float64 `yaml:"timeout_seconds"`
	BreakerThreshold    int     `yaml:"breaker_threshold"`
	BreakerResetSeconds float64 `yaml:"breaker_reset_seconds"`
	BaseURL             string  `yaml:"base_url"`
	APIKey              string  `yaml:"-"` // env only
}

type PathConfig struct {
	AmbientLoop  string `yaml:"ambient_loop"`
	TriggerChime string `yaml:"trigger_chime"`
	FailureChime string `yaml:"failure_chime"`
}

type DryRunConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration before any file is applied.
func Default() *Config {
	return &Config{
		StopKeyword:                "orb sleep",
		AmbientVolumeNormal:        0.6,
		AmbientVolumeDucked:        0.15,
		AmbientFadeSeconds:         1.2,
		SilenceSeconds:             1.5,
		MaxRecordSeconds:           12,
		SilenceThreshold:           0.02,
		SilenceThresholdMultiplier: 1.8,
		CalibrationSeconds:         1.0,
		RecordSampleRate:           16000,
		RecordBlocksize:            800,
		OutputSampleRate:           48000,
		GPIO: GPIOConfig{
			Chip:               "gpiochip0",
			PinTouch:           17,
			TouchBounceSeconds: 0.25,
		},
		LEDs: LEDConfig{Count: 24, Brightness: 0.4, TickHz: 20},
		WakeWord: WakeWordConfig{
			Keyword:         "hey orb",
			Engine:          EngineMock,
			AllowTouch:      true,
			CooldownSeconds: 2,
		},
		Models: ModelConfig{
			Transcribe: "whisper-1",
			Chat:       "gpt-4o-mini",
			TTS:        "tts-1",
			Voice:      "alloy",
		},
		Remote: RemoteConfig{
			TimeoutSeconds:      20,
			BreakerThreshold:    3,
			BreakerResetSeconds: 20,
		},
		Paths: PathConfig{
			AmbientLoop:  "assets/ambient_loop.wav",
			TriggerChime: "assets/glass_chime.wav",
			FailureChime: "assets/down_chime.wav",
		},
		ChatSystemPrompt: "You are a calm voice assistant living inside a glowing orb. Answer in one or two short spoken sentences.",
		HTTPAddr:         "127.0.0.1:8080",
		GRPCAddr:         "127.0.0.1:50061",
		LogLevel:         "info",
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result. Every failure is a Config error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.Config, "read config file").WithMetadata("path", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, apperrors.Wrap(err, apperrors.Config, "parse config file").WithMetadata("path", path)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("ORB_HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getEnv("ORB_GRPC_ADDR", c.GRPCAddr)
	c.LogLevel = getEnv("ORB_LOG_LEVEL", c.LogLevel)
	c.TraceSpans = getEnvBool("ORB_TRACE_SPANS", c.TraceSpans)
	c.DryRun.Enabled = getEnvBool("ORB_DRY_RUN", c.DryRun.Enabled)
	c.WakeWord.Enabled = getEnvBool("ORB_WAKE_WORD_ENABLED", c.WakeWord.Enabled)
	c.Remote.TimeoutSeconds = getEnvFloat("ORB_REMOTE_TIMEOUT_SECONDS", c.Remote.TimeoutSeconds)
	c.Remote.APIKey = getEnv("OPENAI_API_KEY", c.Remote.APIKey)
	c.Remote.BaseURL = getEnv("OPENAI_BASE_URL", c.Remote.BaseURL)
	c.OutputSampleRate = getEnvInt("ORB_OUTPUT_SAMPLE_RATE", c.OutputSampleRate)
}

// Validate checks option ranges, cross-field constraints and asset presence.
func (c *Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.StopKeyword) == "" {
		bad("stop_keyword must not be empty")
	}
	if !unit(c.AmbientVolumeNormal) {
		bad("ambient_volume_normal %v outside [0,1]", c.AmbientVolumeNormal)
	}
	if !unit(c.AmbientVolumeDucked) {
		bad("ambient_volume_ducked %v outside [0,1]", c.AmbientVolumeDucked)
	}
	if c.AmbientVolumeDucked > c.AmbientVolumeNormal {
		bad("ambient_volume_ducked %v exceeds ambient_volume_normal %v", c.AmbientVolumeDucked, c.AmbientVolumeNormal)
	}
	if c.AmbientFadeSeconds < 0 {
		bad("ambient_fade_seconds must not be negative")
	}
	if c.SilenceSeconds <= 0 {
		bad("silence_seconds must be positive")
	}
	if c.MaxRecordSeconds <= c.SilenceSeconds {
		bad("max_record_seconds %v must exceed silence_seconds %v", c.MaxRecordSeconds, c.SilenceSeconds)
	}
	if c.SilenceThreshold < 0 {
		bad("silence_threshold must not be negative")
	}
	if c.SilenceThreshold == 0 && c.SilenceThresholdMultiplier <= 0 {
		bad("silence_threshold_multiplier must be positive when calibrating")
	}
	if c.CalibrationSeconds < 0 || c.CalibrationSeconds >= c.MaxRecordSeconds {
		bad("calibration_seconds %v must be in [0, max_record_seconds)", c.CalibrationSeconds)
	}
	if c.RecordSampleRate <= 0 || c.RecordBlocksize <= 0 || c.OutputSampleRate <= 0 {
		bad("sample rates and blocksize must be positive")
	}
	if c.WakeWord.Enabled {
		if c.WakeWord.Engine != EngineMock {
			bad("unknown wake_word.engine %q", c.WakeWord.Engine)
		}
		if strings.TrimSpace(c.WakeWord.Keyword) == "" {
			bad("wake_word.keyword must not be empty")
		}
	}
	if c.LEDs.TickHz <= 0 {
		bad("leds.tick_hz must be positive")
	}
	if !unit(c.LEDs.Brightness) {
		bad("leds.brightness %v outside [0,1]", c.LEDs.Brightness)
	}
	if c.Remote.TimeoutSeconds <= 0 {
		bad("remote.timeout_seconds must be positive")
	}
	for name, p := range map[string]string{
		"paths.ambient_loop":  c.Paths.AmbientLoop,
		"paths.trigger_chime": c.Paths.TriggerChime,
		"paths.failure_chime": c.Paths.FailureChime,
	} {
		if p == "" {
			bad("%s must be set", name)
			continue
		}
		if _, err := os.Stat(p); err != nil {
			bad("%s %q: %v", name, p, err)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return apperrors.New(apperrors.Config, "invalid configuration: "+strings.Join(problems, "; "))
}

// TouchEnabled reports whether the touch source participates in triggering.
func (c *Config) TouchEnabled() bool {
	return !c.WakeWord.Enabled || c.WakeWord.AllowTouch
}

func (c *Config) FadeDuration() time.Duration { return seconds(c.AmbientFadeSeconds) }
func (c *Config) RemoteTimeout() time.Duration { return seconds(c.Remote.TimeoutSeconds) }
func (c *Config) TouchBounce() time.Duration { return seconds(c.GPIO.TouchBounceSeconds) }
func (c *Config) WakeCooldown() time.Duration { return seconds(c.WakeWord.CooldownSeconds) }
func (c *Config) BreakerReset() time.Duration { return seconds(c.Remote.BreakerResetSeconds) }
func (c *Config) LEDTick() time.Duration { return time.Duration(float64(time.Second) / c.LEDs.TickHz) }
func (c *Config) SilenceDuration() time.Duration { return seconds(c.SilenceSeconds) }
func (c *Config) MaxRecordDuration() time.Duration { return seconds(c.MaxRecordSeconds) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}
