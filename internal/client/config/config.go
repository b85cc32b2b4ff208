package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the session manager.
//
// Fields:
//   - ServerBaseURL: same-origin proxy in front of /api/auth/*.
//   - UserAgent: client user-agent, drives mobile/desktop strategy selection.
//   - DatabaseDSN: SQLite DSN of the durable credential tier.
//   - RedisAddr/RedisPassword/RedisDB: session-scoped tier; empty RedisAddr
//     keeps that tier in process memory.
//   - SessionTTL: lifetime of session-scoped entries and cookies.
//   - ProfileSyncDebounce/TokenRefreshDebounce: guard windows that break
//     refresh loops.
//   - ProfileFetchTimeout/ProbeTimeout: per-request deadlines.
//   - LoginMaxAttempts/LoginBackoffBase: mobile retry policy.
//   - DiagnosticsCapacity: number of AttemptRecords kept in the session.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - NetworkType/NetworkDownlink/NetworkSaveData: optional connection hints
//     attached to diagnostics when set.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	ServerBaseURL        string
	UserAgent            string
	DatabaseDSN          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	SessionTTL           time.Duration
	ProfileSyncDebounce  time.Duration
	TokenRefreshDebounce time.Duration
	ProfileFetchTimeout  time.Duration
	ProbeTimeout         time.Duration
	LoginMaxAttempts     int
	LoginBackoffBase     time.Duration
	DiagnosticsCapacity  int
	OnlineCheckInterval  time.Duration
	NetworkType          string
	NetworkDownlink      float64
	NetworkSaveData      bool
	LogLevel             string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8000"
	c.UserAgent = "restosession-cli/1.0"
	c.DatabaseDSN = "file:session.db"
	c.RedisAddr = ""
	c.RedisPassword = ""
	c.RedisDB = 0
	c.SessionTTL = 24 * time.Hour
	c.ProfileSyncDebounce = 3 * time.Second
	c.TokenRefreshDebounce = 5 * time.Second
	c.ProfileFetchTimeout = 15 * time.Second
	c.ProbeTimeout = 5 * time.Second
	c.LoginMaxAttempts = 3
	c.LoginBackoffBase = 2 * time.Second
	c.DiagnosticsCapacity = 10
	c.OnlineCheckInterval = 3 * time.Second
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, a config file (if given) and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, ".env")
	parseFile(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
