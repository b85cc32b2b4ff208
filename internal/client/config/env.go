package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "RESTOSESSION_"

// parseEnv overlays cfg with RESTOSESSION_* environment variables. When
// dotenvPath exists it is loaded first; variables already present in the
// process environment are not overridden by the file. Malformed numeric
// values are ignored.
func parseEnv(cfg *Config, dotenvPath string) {
	if dotenvPath != "" {
		_ = godotenv.Load(dotenvPath)
	}

	envString(&cfg.ServerBaseURL, "SERVER_BASE_URL")
	envString(&cfg.UserAgent, "USER_AGENT")
	envString(&cfg.DatabaseDSN, "DATABASE_DSN")
	envString(&cfg.RedisAddr, "REDIS_ADDR")
	envString(&cfg.RedisPassword, "REDIS_PASSWORD")
	envInt(&cfg.RedisDB, "REDIS_DB")
	envDuration(&cfg.SessionTTL, "SESSION_TTL")
	envDuration(&cfg.ProfileSyncDebounce, "PROFILE_SYNC_DEBOUNCE")
	envDuration(&cfg.TokenRefreshDebounce, "TOKEN_REFRESH_DEBOUNCE")
	envDuration(&cfg.ProfileFetchTimeout, "PROFILE_FETCH_TIMEOUT")
	envDuration(&cfg.ProbeTimeout, "PROBE_TIMEOUT")
	envInt(&cfg.LoginMaxAttempts, "LOGIN_MAX_ATTEMPTS")
	envDuration(&cfg.LoginBackoffBase, "LOGIN_BACKOFF_BASE")
	envInt(&cfg.DiagnosticsCapacity, "DIAGNOSTICS_CAPACITY")
	envDuration(&cfg.OnlineCheckInterval, "ONLINE_CHECK_INTERVAL")
	envString(&cfg.NetworkType, "NETWORK_TYPE")
	envString(&cfg.LogLevel, "LOG_LEVEL")

	if v, ok := os.LookupEnv(envPrefix + "NETWORK_DOWNLINK"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.NetworkDownlink = f
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "NETWORK_SAVE_DATA"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.NetworkSaveData = b
		}
	}
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = v
	}
}

func envInt(dst *int, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(dst *time.Duration, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
