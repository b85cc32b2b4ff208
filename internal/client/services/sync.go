package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/client"
	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/client/storage"
	"github.com/dmitrijs2005/restosession/internal/clock"
	"github.com/dmitrijs2005/restosession/internal/common"
	"github.com/dmitrijs2005/restosession/internal/logging"
	"golang.org/x/sync/singleflight"
)

// OfflineMessage is set as Session.LastError while a cached session is in
// use because the server is unreachable.
const OfflineMessage = "Offline mode: using your saved session"

const (
	flightProfile = "profile"
	flightRefresh = "refresh"
)

// ProfileAPI is the subset of the transport used by the synchronizer.
type ProfileAPI interface {
	Me(ctx context.Context, accessToken string) (*models.Profile, error)
	Refresh(ctx context.Context, refreshToken string) (models.Tokens, error)
}

// SyncOptions selects which debounce guards a sync ignores.
type SyncOptions struct {
	BypassSyncGuard    bool
	BypassRefreshGuard bool
}

// SyncConfig holds the synchronizer's timing.
type SyncConfig struct {
	SyncDebounce    time.Duration
	RefreshDebounce time.Duration
	FetchTimeout    time.Duration
}

// ProfileSynchronizer fetches the user's profile with cache fallback and
// the refresh-on-401 sub-flow.
type ProfileSynchronizer struct {
	api    ProfileAPI
	store  *storage.ReplicatedStore
	state  *sessionState
	online func() bool
	logout func(ctx context.Context)
	clk    clock.Clock
	logger logging.Logger
	cfg    SyncConfig

	group singleflight.Group
}

func newProfileSynchronizer(api ProfileAPI, store *storage.ReplicatedStore, state *sessionState, online func() bool,
	logout func(ctx context.Context), clk clock.Clock, logger logging.Logger, cfg SyncConfig) *ProfileSynchronizer {
	return &ProfileSynchronizer{
		api:    api,
		store:  store,
		state:  state,
		online: online,
		logout: logout,
		clk:    clk,
		logger: logger.With("component", "profile_sync"),
		cfg:    cfg,
	}
}

// Sync fetches the profile honoring both debounce guards.
func (p *ProfileSynchronizer) Sync(ctx context.Context) (*models.Profile, error) {
	return p.SyncWith(ctx, SyncOptions{})
}

// SyncWith runs a sync. Concurrent callers holding the same access token
// share one in-flight sync; the options of the caller that started it apply.
func (p *ProfileSynchronizer) SyncWith(ctx context.Context, opts SyncOptions) (*models.Profile, error) {
	token := p.state.token()
	if token == "" {
		token, _ = p.store.Read(ctx, common.KeyAccessToken)
	}
	v, err, shared := p.group.Do(flightKey(flightProfile, token), func() (any, error) {
		return p.sync(context.WithoutCancel(ctx), opts, token)
	})
	if shared {
		p.logger.Debug(ctx, "joined in-flight profile sync")
	}
	if err != nil {
		return nil, err
	}
	return v.(*models.Profile).Clone(), nil
}

// flightKey scopes an in-flight operation to the access token it runs
// with, so a request started by one session is never joined by the next.
func flightKey(op, token string) string {
	return op + ":" + token
}

func (p *ProfileSynchronizer) sync(ctx context.Context, opts SyncOptions, token string) (*models.Profile, error) {
	cached, err := cachedProfile(ctx, p.store)
	if err != nil {
		p.logger.Warn(ctx, "ignoring unreadable cached profile", "error", err)
	}

	if !opts.BypassSyncGuard && p.guarded(ctx, common.KeyProfileSyncTimestamp, p.cfg.SyncDebounce) {
		p.logger.Debug(ctx, "profile sync debounced")
		if cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("profile sync debounced: %w", common.ErrLocalDataNotAvailable)
	}

	if token == "" {
		if cached != nil {
			return cached, nil
		}
		p.state.mutate(ctx, func(s *models.Session) {
			s.IsAuthenticated = false
			s.User = nil
		})
		return nil, fmt.Errorf("profile sync: %w", common.ErrNotAuthenticated)
	}

	if p.online != nil && !p.online() {
		if cached != nil {
			p.useCached(ctx, token, cached, OfflineMessage)
			return cached, nil
		}
		return nil, fmt.Errorf("profile sync offline: %w", common.ErrNetworkUnavailable)
	}

	var profile *models.Profile
	if client.TokenExpired(token, p.clk.Now()) {
		p.logger.Debug(ctx, "access token expired locally, skipping fetch")
		err = fmt.Errorf("access token: %w", common.ErrTokenExpired)
	} else {
		profile, err = p.fetch(ctx, token)
	}

	switch {
	case err == nil:
		return p.accept(ctx, token, profile)
	case errors.Is(err, common.ErrTokenExpired):
		return p.refreshAndRetry(ctx, opts, token, cached)
	default:
		p.logger.Warn(ctx, "profile fetch failed", "error", err, "cached", cached != nil)
		if cached != nil {
			p.useCached(ctx, token, cached, "")
			return cached, nil
		}
		return nil, err
	}
}

func (p *ProfileSynchronizer) fetch(ctx context.Context, token string) (*models.Profile, error) {
	if err := p.store.WriteTime(ctx, common.KeyProfileSyncTimestamp, p.clk.Now()); err != nil {
		p.logger.Warn(ctx, "sync guard not recorded", "error", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()
	return p.api.Me(ctx, token)
}

func (p *ProfileSynchronizer) refreshAndRetry(ctx context.Context, opts SyncOptions, token string, cached *models.Profile) (*models.Profile, error) {
	if !opts.BypassRefreshGuard && p.guarded(ctx, common.KeyTokenRefreshTimestamp, p.cfg.RefreshDebounce) {
		p.logger.Warn(ctx, "token refresh debounced")
		return p.fallbackOrLogout(ctx, token, cached, fmt.Errorf("refresh debounced: %w", common.ErrRefreshFailed))
	}

	tokens, err := p.refresh(ctx, token)
	if err != nil {
		return p.fallbackOrLogout(ctx, token, cached, err)
	}

	profile, err := p.fetch(ctx, tokens.AccessToken)
	if err != nil {
		p.logger.Warn(ctx, "profile fetch after refresh failed", "error", err)
		return p.fallbackOrLogout(ctx, tokens.AccessToken, cached, err)
	}
	return p.accept(ctx, tokens.AccessToken, profile)
}

// refresh exchanges the stored refresh token of the session holding
// token. Concurrent refreshers of the same session share one request. The
// new pair is dropped if the session changed while the request was out.
func (p *ProfileSynchronizer) refresh(ctx context.Context, token string) (models.Tokens, error) {
	v, err, _ := p.group.Do(flightKey(flightRefresh, token), func() (any, error) {
		var refreshToken string
		if s := p.state.get(); s.AccessToken == token {
			refreshToken = s.RefreshToken
		}
		if refreshToken == "" {
			refreshToken, _ = p.store.Read(ctx, common.KeyRefreshToken)
		}
		if refreshToken == "" {
			return models.Tokens{}, fmt.Errorf("no refresh token: %w", common.ErrRefreshFailed)
		}

		if err := p.store.WriteTime(ctx, common.KeyTokenRefreshTimestamp, p.clk.Now()); err != nil {
			p.logger.Warn(ctx, "refresh guard not recorded", "error", err)
		}
		tokens, err := p.api.Refresh(ctx, refreshToken)
		if err != nil {
			p.logger.Warn(ctx, "token refresh failed", "error", err)
			if !errors.Is(err, common.ErrRefreshFailed) {
				err = errors.Join(common.ErrRefreshFailed, err)
			}
			return models.Tokens{}, err
		}

		applied := false
		p.state.mutate(ctx, func(s *models.Session) {
			if !s.IsAuthenticated || s.AccessToken != token {
				return
			}
			applied = true
			persistTokens(ctx, p.store, p.logger, tokens, false)
			s.AccessToken = tokens.AccessToken
			if tokens.RefreshToken != "" {
				s.RefreshToken = tokens.RefreshToken
			}
		})
		if !applied {
			p.logger.Debug(ctx, "dropping tokens refreshed for a closed session")
			return models.Tokens{}, fmt.Errorf("session changed during refresh: %w", common.ErrRefreshFailed)
		}
		p.logger.Info(ctx, "access token refreshed")
		return tokens, nil
	})
	if err != nil {
		return models.Tokens{}, err
	}
	return v.(models.Tokens), nil
}

// fallbackOrLogout serves the cached profile, or logs out when there is
// none. A session other than the one holding token is left alone.
func (p *ProfileSynchronizer) fallbackOrLogout(ctx context.Context, token string, cached *models.Profile, cause error) (*models.Profile, error) {
	if cached != nil {
		p.useCached(ctx, token, cached, "")
		return cached, nil
	}
	if p.state.token() != token {
		p.logger.Debug(ctx, "session changed, not logging out", "error", cause)
		return nil, cause
	}
	p.logger.Warn(ctx, "no cached profile, logging out", "error", cause)
	if p.logout != nil {
		p.logout(ctx)
	}
	return nil, cause
}

// accept installs a profile fetched with token and caches it. A profile
// that arrives after its session was closed or replaced is dropped.
func (p *ProfileSynchronizer) accept(ctx context.Context, token string, profile *models.Profile) (*models.Profile, error) {
	applied := false
	p.state.mutate(ctx, func(s *models.Session) {
		if !s.IsAuthenticated || s.AccessToken != token {
			return
		}
		applied = true
		s.User = profile.Clone()
		p.cache(ctx, profile)
	})
	if !applied {
		p.logger.Debug(ctx, "dropping profile fetched for a closed session")
		return nil, fmt.Errorf("profile sync: session changed: %w", common.ErrNotAuthenticated)
	}
	return profile, nil
}

func (p *ProfileSynchronizer) cache(ctx context.Context, profile *models.Profile) {
	if err := p.store.WriteJSON(ctx, common.KeyUserProfile, profile); err != nil {
		p.logger.Warn(ctx, "profile not cached", "error", err)
	}
	if err := p.store.WriteTime(ctx, common.KeyProfileTimestamp, p.clk.Now()); err != nil {
		p.logger.Warn(ctx, "profile timestamp not cached", "error", err)
	}
	if err := p.store.Write(ctx, common.KeyUserRole, string(profile.Role)); err != nil {
		p.logger.Warn(ctx, "role not cached", "error", err)
	}
}

func (p *ProfileSynchronizer) useCached(ctx context.Context, token string, cached *models.Profile, lastError string) {
	p.state.mutate(ctx, func(s *models.Session) {
		if !s.IsAuthenticated || s.AccessToken != token {
			return
		}
		s.User = cached.Clone()
		if lastError != "" {
			s.LastError = lastError
		}
	})
}

func (p *ProfileSynchronizer) guarded(ctx context.Context, key string, window time.Duration) bool {
	last, ok := p.store.ReadTime(ctx, key)
	if !ok {
		return false
	}
	return p.clk.Now().Sub(last) < window
}
