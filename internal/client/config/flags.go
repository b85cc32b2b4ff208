package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/restosession/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   base URL of the auth proxy
//	-i int      online check interval in seconds
//	-d string   durable tier SQLite DSN
//	-r string   session tier Redis address
//	-u string   user agent
//
// args are filtered with flagx.FilterArgs first so flags owned by other
// stages (-c) do not interfere. Panics on malformed values.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-i", "-d", "-r", "-u"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the auth proxy")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "durable credential store DSN")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address for the session tier")
	fs.StringVar(&cfg.UserAgent, "u", cfg.UserAgent, "user agent used for device classification")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
