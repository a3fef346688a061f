package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resetArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"nvlp"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestLoadDefaults(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()

	require.Equal(t, 10*time.Second, cfg.RestTimeout)
	require.Equal(t, 30*time.Second, cfg.FunctionsTimeout)
	require.Equal(t, 3, cfg.RetryMaxAttempts)
	require.Equal(t, 100*time.Millisecond, cfg.RetryBaseDelay)
	require.Equal(t, "exponential", cfg.RetryStrategy)
	require.Equal(t, 5*time.Minute, cfg.TokenSkew)
	require.True(t, cfg.QueueEnabled)
	require.Equal(t, 100, cfg.QueueMaxSize)
	require.Equal(t, QueueDriverFile, cfg.QueueDriver)
	require.Greater(t, cfg.FunctionsTimeout, cfg.RestTimeout,
		"edge functions get the longer default deadline")
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	resetArgs(t)
	t.Setenv("NVLP_REST_URL", "https://env.example.test/rest/v1")
	t.Setenv("NVLP_API_KEY", "env-key")
	t.Setenv("NVLP_QUEUE_DRIVER", "memory")
	t.Setenv("NVLP_QUEUE_ENABLED", "false")
	t.Setenv("NVLP_QUEUE_MAX_SIZE", "7")

	cfg := LoadConfig()
	require.Equal(t, "https://env.example.test/rest/v1", cfg.RestURL)
	require.Equal(t, "env-key", cfg.APIKey)
	require.Equal(t, QueueDriverMemory, cfg.QueueDriver)
	require.False(t, cfg.QueueEnabled)
	require.Equal(t, 7, cfg.QueueMaxSize)
}

func TestLoadConfig_FlagsWinOverEnv(t *testing.T) {
	t.Setenv("NVLP_REST_URL", "https://env.example.test")
	resetArgs(t, "-rest", "https://flag.example.test", "-queue-max", "5")

	cfg := LoadConfig()
	require.Equal(t, "https://flag.example.test", cfg.RestURL)
	require.Equal(t, 5, cfg.QueueMaxSize)
}

func TestLoadConfig_JsonLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"rest_url": "https://json.example.test/rest/v1",
		"rest_timeout_ms": 2500,
		"retry_max_attempts": 5,
		"retry_strategy": "linear",
		"token_skew_ms": 60000,
		"queue_evict_oldest": true
	}`), 0o600))

	resetArgs(t, "-c", path)

	cfg := LoadConfig()
	require.Equal(t, "https://json.example.test/rest/v1", cfg.RestURL)
	require.Equal(t, 2500*time.Millisecond, cfg.RestTimeout)
	require.Equal(t, 5, cfg.RetryMaxAttempts)
	require.Equal(t, "linear", cfg.RetryStrategy)
	require.Equal(t, time.Minute, cfg.TokenSkew)
	require.True(t, cfg.QueueEvictOldest)

	// Fields absent from the file keep their defaults.
	require.Equal(t, 30*time.Second, cfg.FunctionsTimeout)
}

func TestLoadConfig_FlagsWinOverJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rest_url": "https://json.example.test"}`), 0o600))

	resetArgs(t, "-c", path, "-rest", "https://flag.example.test")

	cfg := LoadConfig()
	require.Equal(t, "https://flag.example.test", cfg.RestURL)
}

func TestParseJson_PanicsOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	resetArgs(t, "-c", path)

	require.Panics(t, func() { LoadConfig() })
}
