package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_OverridesDefaults(t *testing.T) {
	t.Setenv("RESTOSESSION_SERVER_BASE_URL", "https://env.example.com")
	t.Setenv("RESTOSESSION_LOGIN_MAX_ATTEMPTS", "4")
	t.Setenv("RESTOSESSION_PROFILE_SYNC_DEBOUNCE", "750ms")
	t.Setenv("RESTOSESSION_NETWORK_DOWNLINK", "0.4")
	t.Setenv("RESTOSESSION_DIAGNOSTICS_CAPACITY", "not-a-number")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, "")

	assert.Equal(t, "https://env.example.com", cfg.ServerBaseURL)
	assert.Equal(t, 4, cfg.LoginMaxAttempts)
	assert.Equal(t, 750*time.Millisecond, cfg.ProfileSyncDebounce)
	assert.InDelta(t, 0.4, cfg.NetworkDownlink, 1e-9)
	assert.Equal(t, 10, cfg.DiagnosticsCapacity, "malformed values are ignored")
}

func TestParseEnv_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RESTOSESSION_REDIS_ADDR=cache:6379\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("RESTOSESSION_REDIS_ADDR") })

	cfg := &Config{}
	parseEnv(cfg, path)

	assert.Equal(t, "cache:6379", cfg.RedisAddr)
}
