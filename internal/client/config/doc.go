// Package config loads runtime configuration for the session manager CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables prefixed RESTOSESSION_, optionally seeded from a
//     .env file in the working directory (see parseEnv).
//  3. Optional config file selected with -c or -config; ".yaml"/".yml" files
//     are decoded as YAML, anything else as JSON (see parseFile).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the auth proxy
//	-i int      online status check interval (seconds)
//	-d string   SQLite DSN of the durable credential tier
//	-r string   Redis address of the session-scoped tier
//	-u string   user agent used for device classification
//
// # File schema
//
// Durations use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "server_base_url": "https://order.example.com",
//	  "profile_sync_debounce": "3s",
//	  "token_refresh_debounce": "5s",
//	  "login_max_attempts": 3
//	}
package config
