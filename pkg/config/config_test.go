package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-wingman/pkg/core/live"
)

// clearWingmanEnv unsets every WINGMAN_ and provider variable for the test.
// t.Setenv registers the restore; the unset keeps the variable absent rather
// than empty, since an empty WINGMAN_ value is still an override.
func clearWingmanEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, EnvPrefix) {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
	for key := range providerEnv {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wingman.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearWingmanEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 16000, cfg.Audio.SampleRate)
	require.Equal(t, 4096, cfg.Audio.FrameBytes)
	require.Equal(t, "nova-3", cfg.STT.Model)
	require.Equal(t, 2500, cfg.STT.EndpointingMs)
	require.Equal(t, 5*time.Second, cfg.Cooldowns["gemini"])
	require.Equal(t, 3*time.Second, cfg.Cooldowns["gemini-flash-lite"])
	require.Equal(t, time.Second, cfg.Reconnect.InitialInterval)
	require.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	require.Equal(t, 3, cfg.Shutdown.MinUtterances)
	require.Equal(t, 60*time.Second, cfg.Shutdown.SummaryTimeout)
	require.Equal(t, "file", cfg.Settings.Store)
	require.False(t, cfg.Telemetry.Enabled)
	require.Empty(t, cfg.Credential(live.CredentialSTT))
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearWingmanEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "gemini-2.5-flash", cfg.Completion.Model)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearWingmanEnv(t)
	path := writeFile(t, `
completion:
  model: gemini-2.5-flash-lite
  api_key: file-key
cooldowns:
  gemini-flash-lite: 2s
shutdown:
  min_utterances: 5
settings:
  store: sqlite
`)
	t.Setenv("WINGMAN_COMPLETION__API_KEY", "env-key")
	t.Setenv("WINGMAN_SHUTDOWN__PERSIST_TIMEOUT", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "gemini-2.5-flash-lite", cfg.Completion.Model)
	require.Equal(t, "env-key", cfg.Completion.APIKey)
	require.Equal(t, 2*time.Second, cfg.Cooldowns["gemini-flash-lite"])
	require.Equal(t, 5*time.Second, cfg.Cooldowns["gemini"])
	require.Equal(t, 5, cfg.Shutdown.MinUtterances)
	require.Equal(t, 45*time.Second, cfg.Shutdown.PersistTimeout)
	require.Equal(t, "sqlite", cfg.Settings.Store)
}

func TestLoad_ProviderVariables(t *testing.T) {
	clearWingmanEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "dg")
	t.Setenv("HUME_API_KEY", "hume")
	t.Setenv("GEMINI_API_KEY", "gem")
	t.Setenv("WINGMAN_EMOTION__API_KEY", "hume-override")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "dg", cfg.Credential(live.CredentialSTT))
	require.Equal(t, "hume-override", cfg.Credential(live.CredentialEmotion))
	require.Equal(t, "gem", cfg.Credential(live.CredentialCompletion))
	// The summary key falls back to the completion key.
	require.Equal(t, "gem", cfg.Credential(live.CredentialSummary))
	require.Empty(t, cfg.Credential("unknown"))

	t.Setenv("WINGMAN_SUMMARY__API_KEY", "sum")
	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, "sum", cfg.Credential(live.CredentialSummary))
}

func TestLoad_MalformedFile(t *testing.T) {
	clearWingmanEnv(t)
	path := writeFile(t, "audio: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "config file")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		errSubstr string
	}{
		{
			name:      "stereo rejected",
			env:       map[string]string{"WINGMAN_AUDIO__CHANNELS": "2"},
			errSubstr: "audio.channels",
		},
		{
			name:      "odd frame size",
			env:       map[string]string{"WINGMAN_AUDIO__FRAME_BYTES": "4095"},
			errSubstr: "audio.frame_bytes",
		},
		{
			name:      "context larger than retained",
			env:       map[string]string{"WINGMAN_SUGGEST__CONTEXT_TURNS": "12"},
			errSubstr: "suggest.max_context_turns",
		},
		{
			name:      "negative cooldown",
			env:       map[string]string{"WINGMAN_COOLDOWNS__GEMINI": "-1s"},
			errSubstr: "cooldowns.gemini",
		},
		{
			name:      "multiplier below one",
			env:       map[string]string{"WINGMAN_RECONNECT__MULTIPLIER": "0.5"},
			errSubstr: "reconnect.multiplier",
		},
		{
			name:      "zero summary timeout",
			env:       map[string]string{"WINGMAN_SHUTDOWN__SUMMARY_TIMEOUT": "0s"},
			errSubstr: "shutdown.summary_timeout",
		},
		{
			name:      "unknown settings store",
			env:       map[string]string{"WINGMAN_SETTINGS__STORE": "redis"},
			errSubstr: "settings.store",
		},
		{
			name:      "temperature out of range",
			env:       map[string]string{"WINGMAN_COMPLETION__TEMPERATURE": "3"},
			errSubstr: "completion.temperature",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearWingmanEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errSubstr)
		})
	}
}

func TestConfig_Live(t *testing.T) {
	clearWingmanEnv(t)
	t.Setenv("WINGMAN_RECONNECT__MAX_ATTEMPTS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	lc := cfg.Live()
	require.Equal(t, 7, lc.Policy.MaxAttempts)
	require.Equal(t, 2.0, lc.Policy.Multiplier)
	require.Equal(t, 5*time.Second, lc.DefaultCooldown)
	require.Equal(t, 3*time.Second, lc.Cooldowns["gemini-flash-lite"])
	require.Equal(t, 20*time.Second, lc.SuggestTimeout)
	require.Equal(t, 30*time.Second, lc.PersistTimeout)
	require.Equal(t, 10, lc.MaxContextTurns)
}
