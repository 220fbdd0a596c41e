// Package config loads process configuration: coded defaults, then an
// optional YAML file, then WINGMAN_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/vango-go/vai-wingman/pkg/core/audio"
	"github.com/vango-go/vai-wingman/pkg/core/live"
	"github.com/vango-go/vai-wingman/pkg/core/stream"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates levels: WINGMAN_STT__API_KEY sets stt.api_key.
const EnvPrefix = "WINGMAN_"

type Config struct {
	Audio      AudioConfig              `koanf:"audio"`
	STT        STTConfig                `koanf:"stt"`
	Emotion    EmotionConfig            `koanf:"emotion"`
	Completion CompletionConfig         `koanf:"completion"`
	Summary    SummaryConfig            `koanf:"summary"`
	Suggest    SuggestConfig            `koanf:"suggest"`
	Cooldowns  map[string]time.Duration `koanf:"cooldowns"`
	Reconnect  ReconnectConfig          `koanf:"reconnect"`
	Shutdown   ShutdownConfig           `koanf:"shutdown"`
	Settings   SettingsConfig           `koanf:"settings"`
	Store      StoreConfig              `koanf:"store"`
	Telemetry  TelemetryConfig          `koanf:"telemetry"`
	Overlay    OverlayConfig            `koanf:"overlay"`
}

type AudioConfig struct {
	SampleRate int `koanf:"sample_rate"`
	Channels   int `koanf:"channels"`
	FrameBytes int `koanf:"frame_bytes"`
}

type STTConfig struct {
	APIKey         string `koanf:"api_key"`
	URL            string `koanf:"url"`
	Model          string `koanf:"model"`
	Language       string `koanf:"language"`
	EndpointingMs  int    `koanf:"endpointing_ms"`
	UtteranceEndMs int    `koanf:"utterance_end_ms"`
}

type EmotionConfig struct {
	APIKey   string `koanf:"api_key"`
	URL      string `koanf:"url"`
	WindowMs int    `koanf:"window_ms"`
}

type CompletionConfig struct {
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// SummaryConfig falls back to the completion key when api_key is empty.
type SummaryConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

type SuggestConfig struct {
	ContextTurns    int           `koanf:"context_turns"`
	MaxContextTurns int           `koanf:"max_context_turns"`
	RetrievalLimit  int           `koanf:"retrieval_limit"`
	Timeout         time.Duration `koanf:"timeout"`
}

type ReconnectConfig struct {
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
	Multiplier      float64       `koanf:"multiplier"`
	MaxAttempts     int           `koanf:"max_attempts"`
	Jitter          float64       `koanf:"jitter"`
}

type ShutdownConfig struct {
	MinUtterances  int           `koanf:"min_utterances"`
	SummaryTimeout time.Duration `koanf:"summary_timeout"`
	PersistTimeout time.Duration `koanf:"persist_timeout"`
}

// SettingsConfig selects the settings and persona store.
type SettingsConfig struct {
	// Store is "file" (YAML at Path) or "sqlite" (the store database).
	Store string `koanf:"store"`
	Path  string `koanf:"path"`
}

type StoreConfig struct {
	// SQLitePath is the local database for sessions, documents and settings.
	SQLitePath string `koanf:"sqlite_path"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type OverlayConfig struct {
	Addr string `koanf:"addr"`
}

func defaults() map[string]any {
	return map[string]any{
		"audio.sample_rate":           16000,
		"audio.channels":              1,
		"audio.frame_bytes":           audio.DefaultFrameBytes,
		"stt.model":                   "nova-3",
		"stt.language":                "en",
		"stt.endpointing_ms":          2500,
		"stt.utterance_end_ms":        3000,
		"emotion.window_ms":           3000,
		"completion.model":            "gemini-2.5-flash",
		"completion.max_tokens":       500,
		"completion.temperature":      0.3,
		"summary.model":               "gemini-2.5-flash",
		"suggest.context_turns":       5,
		"suggest.max_context_turns":   10,
		"suggest.retrieval_limit":     4,
		"suggest.timeout":             "20s",
		"cooldowns.gemini":            "5s",
		"cooldowns.gemini-flash-lite": "3s",
		"reconnect.initial_interval":  "1s",
		"reconnect.max_interval":      "30s",
		"reconnect.multiplier":        2.0,
		"reconnect.max_attempts":      5,
		"reconnect.jitter":            0.1,
		"shutdown.min_utterances":     3,
		"shutdown.summary_timeout":    "60s",
		"shutdown.persist_timeout":    "30s",
		"settings.store":              "file",
		"settings.path":               "wingman.settings.yaml",
		"store.sqlite_path":           "wingman.db",
		"telemetry.enabled":           false,
		"overlay.addr":                "127.0.0.1:7878",
	}
}

// providerEnv maps the provider SDKs' conventional variables onto config keys.
// They apply only when the WINGMAN_ form is unset.
var providerEnv = map[string]string{
	"DEEPGRAM_API_KEY": "stt.api_key",
	"HUME_API_KEY":     "emotion.api_key",
	"GEMINI_API_KEY":   "completion.api_key",
}

// Load reads path (optional; "" skips the file) and the environment.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return Config{}, fmt.Errorf("config default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s: %w", path, err)
			}
		}
	}

	for name, key := range providerEnv {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			_ = k.Set(key, v)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("config env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks bounds. Credentials are not required here; a missing key
// surfaces as a typed error when a session starts.
func (c Config) Validate() error {
	switch {
	case c.Audio.SampleRate <= 0:
		return fmt.Errorf("audio.sample_rate must be > 0")
	case c.Audio.Channels != 1:
		return fmt.Errorf("audio.channels must be 1")
	case c.Audio.FrameBytes <= 0 || c.Audio.FrameBytes%2 != 0:
		return fmt.Errorf("audio.frame_bytes must be a positive even number")
	case c.STT.EndpointingMs < 0:
		return fmt.Errorf("stt.endpointing_ms must be >= 0")
	case c.Emotion.WindowMs <= 0:
		return fmt.Errorf("emotion.window_ms must be > 0")
	case c.Completion.MaxTokens <= 0:
		return fmt.Errorf("completion.max_tokens must be > 0")
	case c.Completion.Temperature < 0 || c.Completion.Temperature > 2:
		return fmt.Errorf("completion.temperature must be within [0, 2]")
	case c.Suggest.ContextTurns <= 0:
		return fmt.Errorf("suggest.context_turns must be > 0")
	case c.Suggest.MaxContextTurns < c.Suggest.ContextTurns:
		return fmt.Errorf("suggest.max_context_turns must be >= suggest.context_turns")
	case c.Reconnect.InitialInterval <= 0:
		return fmt.Errorf("reconnect.initial_interval must be > 0")
	case c.Reconnect.Multiplier < 1:
		return fmt.Errorf("reconnect.multiplier must be >= 1")
	case c.Reconnect.MaxAttempts <= 0:
		return fmt.Errorf("reconnect.max_attempts must be > 0")
	case c.Reconnect.Jitter < 0 || c.Reconnect.Jitter >= 1:
		return fmt.Errorf("reconnect.jitter must be within [0, 1)")
	case c.Suggest.Timeout <= 0:
		return fmt.Errorf("suggest.timeout must be > 0")
	case c.Shutdown.MinUtterances < 0:
		return fmt.Errorf("shutdown.min_utterances must be >= 0")
	case c.Shutdown.SummaryTimeout <= 0:
		return fmt.Errorf("shutdown.summary_timeout must be > 0")
	case c.Shutdown.PersistTimeout <= 0:
		return fmt.Errorf("shutdown.persist_timeout must be > 0")
	}
	for name, d := range c.Cooldowns {
		if d < 0 {
			return fmt.Errorf("cooldowns.%s must be >= 0", name)
		}
	}
	switch c.Settings.Store {
	case "file", "sqlite":
	default:
		return fmt.Errorf("settings.store must be one of file|sqlite")
	}
	if c.Settings.Store == "file" && strings.TrimSpace(c.Settings.Path) == "" {
		return fmt.Errorf("settings.path must not be empty when settings.store=file")
	}
	return nil
}

// Credential implements live.Credentials.
func (c Config) Credential(name string) string {
	switch name {
	case live.CredentialSTT:
		return c.STT.APIKey
	case live.CredentialEmotion:
		return c.Emotion.APIKey
	case live.CredentialCompletion:
		return c.Completion.APIKey
	case live.CredentialSummary:
		if c.Summary.APIKey != "" {
			return c.Summary.APIKey
		}
		return c.Completion.APIKey
	default:
		return ""
	}
}

// Format returns the target audio format.
func (c Config) Format() audio.Format {
	return audio.Format{SampleRate: c.Audio.SampleRate, Channels: c.Audio.Channels, BitsPerSample: 16}
}

// Live returns the orchestrator configuration.
func (c Config) Live() live.Config {
	return live.Config{
		Policy: stream.ReconnectPolicy{
			InitialInterval: c.Reconnect.InitialInterval,
			Multiplier:      c.Reconnect.Multiplier,
			MaxInterval:     c.Reconnect.MaxInterval,
			MaxAttempts:     c.Reconnect.MaxAttempts,
			Jitter:          c.Reconnect.Jitter,
		},
		Cooldowns:       c.Cooldowns,
		DefaultCooldown: c.Cooldowns["gemini"],
		MinUtterances:   c.Shutdown.MinUtterances,
		MaxContextTurns: c.Suggest.MaxContextTurns,
		SuggestTimeout:  c.Suggest.Timeout,
		SummaryTimeout:  c.Shutdown.SummaryTimeout,
		PersistTimeout:  c.Shutdown.PersistTimeout,
	}
}
