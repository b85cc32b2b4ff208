package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/client"
	"github.com/dmitrijs2005/restosession/internal/client/device"
	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/client/probe"
	"github.com/dmitrijs2005/restosession/internal/client/storage"
	"github.com/dmitrijs2005/restosession/internal/clock"
	"github.com/dmitrijs2005/restosession/internal/common"
	"github.com/dmitrijs2005/restosession/internal/logging"
	"github.com/google/uuid"
)

const loginEndpoint = "/api/auth/login"

// Step labels recorded on an AttemptRecord.
const (
	stepStart           = "start"
	stepOffline         = "offline"
	stepOfflineSession  = "offline_session"
	stepDegradedNetwork = "degraded_network"
	stepSubmit          = "submit"
	stepRejected        = "rejected"
	stepFailed          = "failed"
	stepBackoff         = "backoff"
	stepSuccess         = "success"
)

// Authenticator exchanges credentials for a token pair.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (models.Tokens, error)
}

// Reporter receives login diagnostics. probe.Reporter satisfies it.
type Reporter interface {
	Report(err error, endpoint string, diagnosticInfo map[string]any)
}

// LoginStrategy performs the credential exchange for one device class and
// records its timeline on rec.
type LoginStrategy interface {
	Name() string
	Authenticate(ctx context.Context, auth Authenticator, username, password string, rec *models.AttemptRecord) (models.Tokens, error)
}

type desktopStrategy struct {
	clk clock.Clock
}

// NewDesktopStrategy returns the single-attempt strategy.
func NewDesktopStrategy(clk clock.Clock) LoginStrategy {
	return &desktopStrategy{clk: clk}
}

func (s *desktopStrategy) Name() string { return device.Desktop.String() }

func (s *desktopStrategy) Authenticate(ctx context.Context, auth Authenticator, username, password string, rec *models.AttemptRecord) (models.Tokens, error) {
	rec.Step(stepSubmit+"_1", s.clk.Now())
	tokens, err := auth.Login(ctx, username, password)
	if err != nil {
		rec.Step(stepFailed, s.clk.Now())
		return models.Tokens{}, err
	}
	return tokens, nil
}

type mobileStrategy struct {
	clk         clock.Clock
	maxAttempts int
	backoffBase time.Duration
	network     device.NetworkProbe
}

// NewMobileStrategy returns the retrying strategy: up to maxAttempts
// attempts, waiting backoffBase*2^(n-1) after the n-th failure. Rejected
// credentials are never retried.
func NewMobileStrategy(clk clock.Clock, maxAttempts int, backoffBase time.Duration, network device.NetworkProbe) LoginStrategy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &mobileStrategy{clk: clk, maxAttempts: maxAttempts, backoffBase: backoffBase, network: network}
}

func (s *mobileStrategy) Name() string { return device.Mobile.String() }

func (s *mobileStrategy) Authenticate(ctx context.Context, auth Authenticator, username, password string, rec *models.AttemptRecord) (models.Tokens, error) {
	// A degraded connection is only annotated; the request is unchanged.
	if s.network != nil && s.network().Degraded() {
		rec.Step(stepDegradedNetwork, s.clk.Now())
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		rec.Step(fmt.Sprintf("%s_%d", stepSubmit, attempt), s.clk.Now())
		tokens, err := auth.Login(ctx, username, password)
		if err == nil {
			return tokens, nil
		}
		lastErr = err

		if errors.Is(err, common.ErrInvalidCredentials) {
			rec.Step(stepRejected, s.clk.Now())
			return models.Tokens{}, err
		}
		if attempt == s.maxAttempts || ctx.Err() != nil {
			break
		}

		backoff := s.backoffBase << (attempt - 1)
		rec.Step(fmt.Sprintf("%s_%s", stepBackoff, backoff), s.clk.Now())
		select {
		case <-s.clk.After(backoff):
		case <-ctx.Done():
			rec.Step(stepFailed, s.clk.Now())
			return models.Tokens{}, errors.Join(lastErr, ctx.Err())
		}
		rec.Retries++
	}
	rec.Step(stepFailed, s.clk.Now())
	return models.Tokens{}, lastErr
}

// LoginResult is the outcome of a LoginFlow run.
type LoginResult struct {
	Tokens models.Tokens
	// Offline is set when the session was resumed from stored credentials
	// without contacting the server. Profile then holds the cached profile.
	Offline bool
	Profile *models.Profile
	Record  models.AttemptRecord
}

// LoginFlow runs the login state machine for one call: pick a strategy by
// device class, exchange credentials, persist the tokens and mirror the
// attempt to the probe.
type LoginFlow struct {
	auth     Authenticator
	store    *storage.ReplicatedStore
	reporter Reporter
	detect   device.Detector
	desktop  LoginStrategy
	mobile   LoginStrategy
	online   func() bool
	clk      clock.Clock
	logger   logging.Logger
}

func NewLoginFlow(auth Authenticator, store *storage.ReplicatedStore, reporter Reporter, detect device.Detector,
	desktop, mobile LoginStrategy, online func() bool, clk clock.Clock, logger logging.Logger) *LoginFlow {
	return &LoginFlow{
		auth:     auth,
		store:    store,
		reporter: reporter,
		detect:   detect,
		desktop:  desktop,
		mobile:   mobile,
		online:   online,
		clk:      clk,
		logger:   logger.With("component", "login_flow"),
	}
}

func (f *LoginFlow) strategy() LoginStrategy {
	if f.detect != nil && f.detect() == device.Mobile {
		return f.mobile
	}
	return f.desktop
}

// Run performs one login call. The returned Record is populated on failure
// too so the caller can append it to diagnostics.
func (f *LoginFlow) Run(ctx context.Context, username, password string) (LoginResult, error) {
	strategy := f.strategy()
	now := f.clk.Now()
	rec := models.AttemptRecord{ID: uuid.NewString(), StartedAt: now, Strategy: strategy.Name()}
	rec.Step(stepStart, now)

	var (
		res LoginResult
		err error
	)
	if f.online != nil && !f.online() {
		res, err = f.resumeOffline(ctx, &rec)
	} else {
		res, err = f.submit(ctx, strategy, username, password, &rec)
	}

	rec.Success = err == nil
	if err != nil {
		rec.Error = err.Error()
	}
	res.Record = rec.Clone()
	if f.reporter != nil {
		f.reporter.Report(err, loginEndpoint, probe.AttemptInfo(rec))
	}
	return res, err
}

func (f *LoginFlow) submit(ctx context.Context, strategy LoginStrategy, username, password string, rec *models.AttemptRecord) (LoginResult, error) {
	tokens, err := strategy.Authenticate(ctx, f.auth, username, password, rec)
	if err != nil {
		f.logger.Warn(ctx, "login failed", "strategy", strategy.Name(), "retries", rec.Retries, "status", client.StatusCode(err), "error", err)
		return LoginResult{}, err
	}
	if tokens.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("login: %w", common.ErrMalformedResponse)
	}

	f.persistTokens(ctx, tokens)
	rec.Step(stepSuccess, f.clk.Now())
	f.logger.Info(ctx, "login succeeded", "strategy", strategy.Name(), "retries", rec.Retries)
	return LoginResult{Tokens: tokens}, nil
}

// resumeOffline accepts a stored token and profile pair instead of
// contacting an unreachable server.
func (f *LoginFlow) resumeOffline(ctx context.Context, rec *models.AttemptRecord) (LoginResult, error) {
	rec.Step(stepOffline, f.clk.Now())

	token, ok := f.store.Read(ctx, common.KeyAccessToken)
	if !ok {
		return LoginResult{}, fmt.Errorf("offline login: %w", common.ErrNetworkUnavailable)
	}
	profile, err := cachedProfile(ctx, f.store)
	if err != nil || profile == nil {
		return LoginResult{}, fmt.Errorf("offline login: %w", common.ErrNetworkUnavailable)
	}
	refresh, _ := f.store.Read(ctx, common.KeyRefreshToken)

	rec.Step(stepOfflineSession, f.clk.Now())
	f.logger.Info(ctx, "resumed stored session while offline", "user_id", profile.ID)
	return LoginResult{
		Tokens:  models.Tokens{AccessToken: token, RefreshToken: refresh},
		Offline: true,
		Profile: profile,
	}, nil
}

func (f *LoginFlow) persistTokens(ctx context.Context, tokens models.Tokens) {
	persistTokens(ctx, f.store, f.logger, tokens, true)
}

// persistTokens writes a token pair. With replaceRefresh, a missing refresh
// token removes the stored one instead of keeping a token of another pair.
func persistTokens(ctx context.Context, store *storage.ReplicatedStore, logger logging.Logger, tokens models.Tokens, replaceRefresh bool) {
	if err := store.Write(ctx, common.KeyAccessToken, tokens.AccessToken); err != nil {
		logger.Error(ctx, "access token not persisted", "error", err)
	}
	switch {
	case tokens.RefreshToken != "":
		if err := store.Write(ctx, common.KeyRefreshToken, tokens.RefreshToken); err != nil {
			logger.Error(ctx, "refresh token not persisted", "error", err)
		}
	case replaceRefresh:
		store.Remove(ctx, common.KeyRefreshToken)
	}
}

// cachedProfile returns the stored profile, or nil when none is stored.
func cachedProfile(ctx context.Context, store *storage.ReplicatedStore) (*models.Profile, error) {
	raw, ok := store.Read(ctx, common.KeyUserProfile)
	if !ok {
		return nil, nil
	}
	p, err := models.ParseProfile(raw)
	if err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return p, nil
}
