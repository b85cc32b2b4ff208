package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/client"
	"github.com/dmitrijs2005/restosession/internal/client/config"
	"github.com/dmitrijs2005/restosession/internal/client/device"
	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/client/probe"
	"github.com/dmitrijs2005/restosession/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/restosession/internal/client/services"
	"github.com/dmitrijs2005/restosession/internal/client/storage"
	"github.com/dmitrijs2005/restosession/internal/clock"
	"github.com/dmitrijs2005/restosession/internal/logging"
	"github.com/redis/go-redis/v9"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// sessionManager is the part of services.SessionController the REPL uses.
type sessionManager interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, req client.RegisterRequest) error
	Logout(ctx context.Context)
	RefreshProfile(ctx context.Context) (*models.Profile, error)
	ClearError(ctx context.Context)
	Session() models.Session
	Close(ctx context.Context) error
}

// reportCounter is satisfied by probe.Reporter.
type reportCounter interface {
	Stats() (sent, failed uint64)
}

// backupReader is satisfied by storage.ReplicatedStore.
type backupReader interface {
	ReadBackup(ctx context.Context, key string) (storage.BackupEntry, bool)
}

type App struct {
	config  *config.Config
	session sessionManager
	monitor *services.ConnectivityMonitor
	reports reportCounter
	backups backupReader
	logger  logging.Logger
	reader  *bufio.Reader
	out     io.Writer
	closers []func() error
}

// NewApp builds the credential tiers, the transport and the session
// controller from c, and restores any saved session.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger, reader: bufio.NewReader(os.Stdin), out: os.Stdout}

	db, err := client.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	api, err := client.NewHTTPClient(c.ServerBaseURL, jar, c.UserAgent)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	clk := clock.Real()
	store := storage.NewReplicatedStore(logger, clk,
		durableTier(db),
		app.sessionTier(ctx, clk),
		storage.NewCookieTier(jar, api.BaseURL(), c.SessionTTL),
	)

	network := device.StaticNetwork(c.NetworkType, c.NetworkDownlink, c.NetworkSaveData)
	reporter := probe.NewReporter(api, logger, clk, c.ProbeTimeout, network)
	app.reports = reporter
	app.backups = store
	app.monitor = services.NewConnectivityMonitor(api, c.OnlineCheckInterval, logger)
	controller := services.NewSessionController(services.Dependencies{
		API:      api,
		Store:    store,
		Reporter: reporter,
		Detect:   device.FixedDetector(c.UserAgent),
		Network:  network,
		Online:   app.monitor.Online,
		Clock:    clk,
		Logger:   logger,
	}, ControllerConfig(c))
	controller.Restore(ctx)
	app.session = controller

	return app, nil
}

// ControllerConfig maps runtime configuration onto controller tunables.
func ControllerConfig(c *config.Config) services.Config {
	cfg := services.DefaultConfig()
	cfg.ProfileSyncDebounce = c.ProfileSyncDebounce
	cfg.TokenRefreshDebounce = c.TokenRefreshDebounce
	cfg.ProfileFetchTimeout = c.ProfileFetchTimeout
	cfg.LogoutTimeout = c.ProbeTimeout
	cfg.LoginMaxAttempts = c.LoginMaxAttempts
	cfg.LoginBackoffBase = c.LoginBackoffBase
	cfg.DiagnosticsCapacity = c.DiagnosticsCapacity
	return cfg
}

func durableTier(db *sql.DB) storage.Tier {
	return storage.NewDurableTier(metadata.NewSQLiteRepository(db))
}

// sessionTier uses Redis when it is configured and reachable and falls
// back to process memory otherwise.
func (a *App) sessionTier(ctx context.Context, clk clock.Clock) storage.Tier {
	if a.config.RedisAddr == "" {
		return storage.NewMemoryTier(clk, a.config.SessionTTL)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.config.RedisAddr,
		Password: a.config.RedisPassword,
		DB:       a.config.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn(ctx, "redis unavailable, keeping session tier in memory", "addr", a.config.RedisAddr, "error", err)
		_ = rdb.Close()
		return storage.NewMemoryTier(clk, a.config.SessionTTL)
	}
	a.closers = append(a.closers, rdb.Close)
	return storage.NewRedisTier(rdb, storage.DefaultRedisPrefix, a.config.SessionTTL)
}

func (a *App) mode() Mode {
	if a.monitor == nil || a.monitor.Online() {
		return ModeOnline
	}
	return ModeOffline
}

func (a *App) isLoggedIn() bool {
	return a.session.Session().IsAuthenticated
}

// Run starts the connectivity monitor and the REPL and blocks until the
// user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	if a.monitor != nil {
		a.monitor.Check(ctx)
		go a.monitor.Run(ctx)
	}

	fmt.Fprintln(a.out, "Welcome to restosession CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.session.Close(ctx); err != nil {
		a.logger.Warn(ctx, "background work did not finish", "error", err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
