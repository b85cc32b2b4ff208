package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/restosession/internal/flagx"
	"github.com/dmitrijs2005/restosession/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the DTO used for JSON and YAML config files. It is seeded
// from the current Config before decoding, so keys missing from the file
// keep their earlier values.
type FileConfig struct {
	ServerBaseURL        string         `json:"server_base_url" yaml:"server_base_url"`
	UserAgent            string         `json:"user_agent" yaml:"user_agent"`
	DatabaseDSN          string         `json:"database_dsn" yaml:"database_dsn"`
	RedisAddr            string         `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword        string         `json:"redis_password" yaml:"redis_password"`
	RedisDB              int            `json:"redis_db" yaml:"redis_db"`
	SessionTTL           timex.Duration `json:"session_ttl" yaml:"session_ttl"`
	ProfileSyncDebounce  timex.Duration `json:"profile_sync_debounce" yaml:"profile_sync_debounce"`
	TokenRefreshDebounce timex.Duration `json:"token_refresh_debounce" yaml:"token_refresh_debounce"`
	ProfileFetchTimeout  timex.Duration `json:"profile_fetch_timeout" yaml:"profile_fetch_timeout"`
	ProbeTimeout         timex.Duration `json:"probe_timeout" yaml:"probe_timeout"`
	LoginMaxAttempts     int            `json:"login_max_attempts" yaml:"login_max_attempts"`
	LoginBackoffBase     timex.Duration `json:"login_backoff_base" yaml:"login_backoff_base"`
	DiagnosticsCapacity  int            `json:"diagnostics_capacity" yaml:"diagnostics_capacity"`
	OnlineCheckInterval  timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	NetworkType          string         `json:"network_type" yaml:"network_type"`
	NetworkDownlink      float64        `json:"network_downlink" yaml:"network_downlink"`
	NetworkSaveData      bool           `json:"network_save_data" yaml:"network_save_data"`
	LogLevel             string         `json:"log_level" yaml:"log_level"`
}

func fileConfigFrom(c *Config) FileConfig {
	return FileConfig{
		ServerBaseURL:        c.ServerBaseURL,
		UserAgent:            c.UserAgent,
		DatabaseDSN:          c.DatabaseDSN,
		RedisAddr:            c.RedisAddr,
		RedisPassword:        c.RedisPassword,
		RedisDB:              c.RedisDB,
		SessionTTL:           timex.Duration{Duration: c.SessionTTL},
		ProfileSyncDebounce:  timex.Duration{Duration: c.ProfileSyncDebounce},
		TokenRefreshDebounce: timex.Duration{Duration: c.TokenRefreshDebounce},
		ProfileFetchTimeout:  timex.Duration{Duration: c.ProfileFetchTimeout},
		ProbeTimeout:         timex.Duration{Duration: c.ProbeTimeout},
		LoginMaxAttempts:     c.LoginMaxAttempts,
		LoginBackoffBase:     timex.Duration{Duration: c.LoginBackoffBase},
		DiagnosticsCapacity:  c.DiagnosticsCapacity,
		OnlineCheckInterval:  timex.Duration{Duration: c.OnlineCheckInterval},
		NetworkType:          c.NetworkType,
		NetworkDownlink:      c.NetworkDownlink,
		NetworkSaveData:      c.NetworkSaveData,
		LogLevel:             c.LogLevel,
	}
}

func (fc FileConfig) apply(c *Config) {
	c.ServerBaseURL = fc.ServerBaseURL
	c.UserAgent = fc.UserAgent
	c.DatabaseDSN = fc.DatabaseDSN
	c.RedisAddr = fc.RedisAddr
	c.RedisPassword = fc.RedisPassword
	c.RedisDB = fc.RedisDB
	c.SessionTTL = fc.SessionTTL.Duration
	c.ProfileSyncDebounce = fc.ProfileSyncDebounce.Duration
	c.TokenRefreshDebounce = fc.TokenRefreshDebounce.Duration
	c.ProfileFetchTimeout = fc.ProfileFetchTimeout.Duration
	c.ProbeTimeout = fc.ProbeTimeout.Duration
	c.LoginMaxAttempts = fc.LoginMaxAttempts
	c.LoginBackoffBase = fc.LoginBackoffBase.Duration
	c.DiagnosticsCapacity = fc.DiagnosticsCapacity
	c.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	c.NetworkType = fc.NetworkType
	c.NetworkDownlink = fc.NetworkDownlink
	c.NetworkSaveData = fc.NetworkSaveData
	c.LogLevel = fc.LogLevel
}

// parseFile overlays cfg with values from the file named by -c/-config in
// args. It does nothing when no file is given and panics on read or decode
// errors (a broken config file is a startup failure).
func parseFile(cfg *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := fileConfigFrom(cfg)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}
