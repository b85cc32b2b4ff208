package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/client"
	"github.com/dmitrijs2005/restosession/internal/client/device"
	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/client/storage"
	"github.com/dmitrijs2005/restosession/internal/clock"
	"github.com/dmitrijs2005/restosession/internal/common"
	"github.com/dmitrijs2005/restosession/internal/logging"
)

// Config holds the controller's tunables.
type Config struct {
	ProfileSyncDebounce  time.Duration
	TokenRefreshDebounce time.Duration
	ProfileFetchTimeout  time.Duration
	LogoutTimeout        time.Duration
	LoginMaxAttempts     int
	LoginBackoffBase     time.Duration
	DiagnosticsCapacity  int
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		ProfileSyncDebounce:  3 * time.Second,
		TokenRefreshDebounce: 5 * time.Second,
		ProfileFetchTimeout:  15 * time.Second,
		LogoutTimeout:        5 * time.Second,
		LoginMaxAttempts:     3,
		LoginBackoffBase:     2 * time.Second,
		DiagnosticsCapacity:  10,
	}
}

// Dependencies are the collaborators of a SessionController. Reporter,
// Detect, Network and Online may be nil.
type Dependencies struct {
	API      client.Client
	Store    *storage.ReplicatedStore
	Reporter Reporter
	Detect   device.Detector
	Network  device.NetworkProbe
	Online   func() bool
	Clock    clock.Clock
	Logger   logging.Logger
}

// SessionController owns the Session and orchestrates login, profile sync
// and logout. It is safe for concurrent use.
type SessionController struct {
	api      client.Client
	store    *storage.ReplicatedStore
	reporter Reporter
	state    *sessionState
	flow     *LoginFlow
	sync     *ProfileSynchronizer
	logger   logging.Logger
	cfg      Config

	bg sync.WaitGroup
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	logger := deps.Logger.With("component", "session")
	c := &SessionController{
		api:      deps.API,
		store:    deps.Store,
		reporter: deps.Reporter,
		state:    newSessionState(deps.Store, logger, cfg.DiagnosticsCapacity),
		logger:   logger,
		cfg:      cfg,
	}
	c.flow = NewLoginFlow(deps.API, deps.Store, deps.Reporter, deps.Detect,
		NewDesktopStrategy(deps.Clock),
		NewMobileStrategy(deps.Clock, cfg.LoginMaxAttempts, cfg.LoginBackoffBase, deps.Network),
		deps.Online, deps.Clock, deps.Logger)
	c.sync = newProfileSynchronizer(deps.API, deps.Store, c.state, deps.Online, c.expire, deps.Clock, deps.Logger, SyncConfig{
		SyncDebounce:    cfg.ProfileSyncDebounce,
		RefreshDebounce: cfg.TokenRefreshDebounce,
		FetchTimeout:    cfg.ProfileFetchTimeout,
	})
	return c
}

// Restore rehydrates the Session from the persisted snapshot, or from the
// individual credential keys when no snapshot survived. It makes no
// network calls.
func (c *SessionController) Restore(ctx context.Context) models.Session {
	var snap models.Snapshot
	ok, err := c.store.ReadJSON(ctx, common.KeySessionSnapshot, &snap)
	if err != nil {
		c.logger.Warn(ctx, "ignoring unreadable session snapshot", "error", err)
	}
	if !ok || snap.AccessToken == "" {
		snap = models.Snapshot{}
		snap.AccessToken, _ = c.store.Read(ctx, common.KeyAccessToken)
		snap.RefreshToken, _ = c.store.Read(ctx, common.KeyRefreshToken)
		snap.IsAuthenticated = snap.AccessToken != ""
	}
	if snap.User == nil && snap.IsAuthenticated {
		snap.User, _ = cachedProfile(ctx, c.store)
	}

	sess := c.state.mutate(ctx, func(s *models.Session) {
		s.AccessToken = snap.AccessToken
		s.RefreshToken = snap.RefreshToken
		s.IsAuthenticated = snap.IsAuthenticated
		s.User = snap.User
	})
	c.logger.Debug(ctx, "session restored", "authenticated", sess.IsAuthenticated)
	return sess
}

// Login authenticates and, on success, refreshes the profile in the
// background. It is safe to call again after a failure.
func (c *SessionController) Login(ctx context.Context, username, password string) error {
	c.state.mutate(ctx, func(s *models.Session) {
		s.IsLoading = true
		s.LastError = ""
	})

	res, err := c.flow.Run(ctx, username, password)
	if err != nil {
		c.state.mutate(ctx, func(s *models.Session) {
			s.IsLoading = false
			s.LastError = errorMessage(err)
			s.PushDiagnostic(res.Record, c.cfg.DiagnosticsCapacity)
		})
		return fmt.Errorf("login: %w", err)
	}

	c.state.mutate(ctx, func(s *models.Session) {
		s.IsLoading = false
		s.IsAuthenticated = true
		s.AccessToken = res.Tokens.AccessToken
		s.RefreshToken = res.Tokens.RefreshToken
		s.User = nil
		s.LastError = ""
		if res.Offline {
			s.User = res.Profile
			s.LastError = OfflineMessage
		}
		s.PushDiagnostic(res.Record, c.cfg.DiagnosticsCapacity)
	})

	if !res.Offline {
		c.syncInBackground(ctx)
	}
	return nil
}

// Register creates an account. When the server answers with a token the
// user is logged in; otherwise the session stays unauthenticated.
func (c *SessionController) Register(ctx context.Context, req client.RegisterRequest) error {
	c.state.mutate(ctx, func(s *models.Session) {
		s.IsLoading = true
		s.LastError = ""
	})

	tokens, err := c.api.Register(ctx, req)
	if err != nil {
		c.logger.Warn(ctx, "registration failed", "error", err)
		c.state.mutate(ctx, func(s *models.Session) {
			s.IsLoading = false
			s.LastError = errorMessage(err)
		})
		return fmt.Errorf("register: %w", err)
	}

	if tokens.AccessToken == "" {
		c.state.mutate(ctx, func(s *models.Session) { s.IsLoading = false })
		c.logger.Info(ctx, "registered without automatic login")
		return nil
	}

	persistTokens(ctx, c.store, c.logger, tokens, true)
	c.state.mutate(ctx, func(s *models.Session) {
		s.IsLoading = false
		s.IsAuthenticated = true
		s.AccessToken = tokens.AccessToken
		s.RefreshToken = tokens.RefreshToken
		s.User = nil
	})
	c.logger.Info(ctx, "registered and logged in")
	c.syncInBackground(ctx)
	return nil
}

// Logout always ends with an unauthenticated Session. The stored
// credentials are backed up first; the server is notified in the
// background and its answer is ignored.
func (c *SessionController) Logout(ctx context.Context) {
	c.logout(ctx, "")
}

// expire is the synchronizer's logout: it keeps an explanation for the
// user in LastError.
func (c *SessionController) expire(ctx context.Context) {
	c.logout(ctx, common.UserMessage(common.ErrRefreshFailed))
}

func (c *SessionController) logout(ctx context.Context, reason string) {
	token := c.state.token()

	c.store.Backup(ctx, common.KeyAccessToken, common.KeyRefreshToken, common.KeyUserProfile, common.KeyUserRole)

	if token != "" {
		c.goBackground(ctx, func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, c.cfg.LogoutTimeout)
			defer cancel()
			if err := c.api.Logout(ctx, token); err != nil {
				c.logger.Debug(ctx, "server logout failed", "error", err)
			}
		})
	}

	c.state.mutate(ctx, func(s *models.Session) {
		s.IsAuthenticated = false
		s.AccessToken = ""
		s.RefreshToken = ""
		s.User = nil
		s.IsLoading = false
		s.LastError = reason
	})

	c.store.Clear(ctx, common.SessionKeys...)
	c.logger.Info(ctx, "logged out")
}

// SyncProfile runs a guarded profile sync.
func (c *SessionController) SyncProfile(ctx context.Context) (*models.Profile, error) {
	return c.sync.Sync(ctx)
}

// RefreshProfile re-fetches the profile ignoring both debounce guards, for
// an explicit reload after the user edited it.
func (c *SessionController) RefreshProfile(ctx context.Context) (*models.Profile, error) {
	if !c.state.authenticated() {
		return nil, common.ErrNotAuthenticated
	}
	p, err := c.sync.SyncWith(ctx, SyncOptions{BypassSyncGuard: true, BypassRefreshGuard: true})
	if err != nil {
		c.state.mutate(ctx, func(s *models.Session) {
			if s.LastError == "" {
				s.LastError = errorMessage(err)
			}
		})
		return nil, fmt.Errorf("refresh profile: %w", err)
	}
	return p, nil
}

// ClearError clears Session.LastError only.
func (c *SessionController) ClearError(ctx context.Context) {
	c.state.mutate(ctx, func(s *models.Session) { s.LastError = "" })
}

// Session returns a copy of the current session.
func (c *SessionController) Session() models.Session {
	return c.state.get()
}

// CurrentUser returns a copy of the current profile, or nil.
func (c *SessionController) CurrentUser() *models.Profile {
	return c.state.get().User
}

func (c *SessionController) IsAuthenticated() bool {
	return c.state.authenticated()
}

// AuthorizationHeader returns the value of the Authorization header for
// authenticated requests, or "" when there is no session.
func (c *SessionController) AuthorizationHeader() string {
	s := c.state.get()
	if !s.IsAuthenticated {
		return ""
	}
	return common.BearerPrefix + s.AccessToken
}

// Diagnostics returns the recent login attempts, newest first.
func (c *SessionController) Diagnostics() []models.AttemptRecord {
	return c.state.get().Diagnostics
}

// Close waits for background work: profile syncs, logout notifications
// and diagnostic reports.
func (c *SessionController) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.bg.Wait()
		if w, ok := c.reporter.(interface{ Wait() }); ok {
			w.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SessionController) syncInBackground(ctx context.Context) {
	c.goBackground(ctx, func(ctx context.Context) {
		if _, err := c.sync.SyncWith(ctx, SyncOptions{BypassSyncGuard: true}); err != nil {
			c.logger.Warn(ctx, "post-login profile sync failed", "error", err)
		}
	})
}

func (c *SessionController) goBackground(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn(ctx)
	}()
}

func errorMessage(err error) string {
	if msg := client.ServerMessage(err); msg != "" {
		return msg
	}
	return common.UserMessage(err)
}
