package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chtemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "release", cfg.Mode)
	require.Equal(t, 5000, cfg.Port)
	require.Equal(t, int64(32768), cfg.ReadLimit)
	require.Equal(t, 54*time.Second, cfg.PingPeriod)
	require.Equal(t, 5*time.Second, cfg.WriteTimeout)
	require.Equal(t, 32, cfg.SendBuffer)
	require.Empty(t, cfg.AllowedOrigins)
	require.Equal(t, 10, cfg.CallRateLimit)
	require.False(t, cfg.CallLogEnabled)
	require.Equal(t, 6*time.Hour, cfg.LiveKit.TokenTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	chtemp(t)
	t.Setenv("LIVEKIT_API_KEY", "k123")
	t.Setenv("LIVEKIT_API_SECRET", "s456")
	t.Setenv("DATABASE_URL", "postgres://relay@localhost/relay")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "k123", cfg.LiveKit.APIKey)
	require.Equal(t, "s456", cfg.LiveKit.APISecret)
	require.Equal(t, "postgres://relay@localhost/relay", cfg.DatabaseURL)
	require.Equal(t, 9000, cfg.Port)
}

func TestLoadFromFile(t *testing.T) {
	chtemp(t)
	t.Setenv("CONFIG_ENV", "test")

	require.NoError(t, os.MkdirAll("config", 0o755))
	yaml := `
mode: debug
port: 6001
ping_period: 30s
allowed_origins:
  - https://hrm.example.com
call_log_enabled: true
livekit:
  url: wss://livekit.example.com
`
	require.NoError(t, os.WriteFile(filepath.Join("config", "config.test.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Mode)
	require.Equal(t, 6001, cfg.Port)
	require.Equal(t, 30*time.Second, cfg.PingPeriod)
	require.Equal(t, []string{"https://hrm.example.com"}, cfg.AllowedOrigins)
	require.True(t, cfg.CallLogEnabled)
	require.Equal(t, "wss://livekit.example.com", cfg.LiveKit.URL)
}
