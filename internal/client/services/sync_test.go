package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unauthorized(string) (*models.Profile, error) {
	return nil, apiErr(common.ErrTokenExpired, 401)
}

func TestSync_TwiceWithinWindowFetchesOnce(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	ctx := context.Background()

	p, err := h.c.SyncProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, testProfile(), p)

	h.clk.Advance(time.Second)
	p, err = h.c.SyncProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, testProfile(), p)
	assert.Len(t, h.api.meTokens(), 1)

	h.clk.Advance(3 * time.Second)
	_, err = h.c.SyncProfile(ctx)
	require.NoError(t, err)
	assert.Len(t, h.api.meTokens(), 2)
}

func TestSync_DebouncedWithoutCacheFails(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	h.api.MeFn = func(string) (*models.Profile, error) { return nil, apiErr(common.ErrServerUnavailable, 503) }
	ctx := context.Background()

	_, err := h.c.SyncProfile(ctx)
	require.ErrorIs(t, err, common.ErrServerUnavailable)

	_, err = h.c.SyncProfile(ctx)
	require.ErrorIs(t, err, common.ErrLocalDataNotAvailable)
	assert.Len(t, h.api.meTokens(), 1)
	assert.True(t, h.c.IsAuthenticated())
}

func TestSync_OfflineReturnsCachedProfile(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", testProfile())
	h.online.Store(false)

	p, err := h.c.SyncProfile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testProfile(), p)
	assert.Empty(t, h.api.meTokens())
	assert.Contains(t, h.c.Session().LastError, "Offline mode")
}

func TestSync_OfflineWithoutCacheFails(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	h.online.Store(false)

	_, err := h.c.SyncProfile(context.Background())
	require.ErrorIs(t, err, common.ErrNetworkUnavailable)
	assert.True(t, h.c.IsAuthenticated())
}

func TestSync_RefreshOn401ThenRetry(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	h.api.MeFn = func(token string) (*models.Profile, error) {
		if token == "T1" {
			return unauthorized(token)
		}
		return testProfile(), nil
	}
	h.api.RefreshFn = func(string) (models.Tokens, error) {
		return models.Tokens{AccessToken: "T2", RefreshToken: "R2"}, nil
	}

	p, err := h.c.SyncProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testProfile(), p)

	assert.Equal(t, []string{"T1", "T2"}, h.api.meTokens())
	assert.Equal(t, []string{"R1"}, h.api.refreshTokens())
	s := h.c.Session()
	assert.Equal(t, testProfile(), s.User)
	assert.Equal(t, "T2", s.AccessToken)
	assert.Equal(t, "R2", s.RefreshToken)
	assert.Equal(t, "T2", h.read(t, common.KeyAccessToken))
	assert.Equal(t, "R2", h.read(t, common.KeyRefreshToken))
}

func TestSync_RefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	h.api.MeFn = func(token string) (*models.Profile, error) {
		if token == "T1" {
			return unauthorized(token)
		}
		return testProfile(), nil
	}
	h.api.RefreshFn = func(string) (models.Tokens, error) { return models.Tokens{AccessToken: "T2"}, nil }

	_, err := h.c.SyncProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "R1", h.read(t, common.KeyRefreshToken))
	assert.Equal(t, "R1", h.c.Session().RefreshToken)
}

func TestSync_RefreshFailureWithoutCacheLogsOut(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	h.api.MeFn = unauthorized

	_, err := h.c.SyncProfile(context.Background())
	require.ErrorIs(t, err, common.ErrRefreshFailed)
	h.settle(t)

	s := h.c.Session()
	assert.False(t, s.IsAuthenticated)
	assert.Nil(t, s.User)
	assert.Equal(t, common.UserMessage(common.ErrRefreshFailed), s.LastError)
	assert.Empty(t, h.read(t, common.KeyAccessToken))
	assert.Equal(t, []string{"T1"}, h.api.logoutTokens())

	backup, ok := h.store.ReadBackup(context.Background(), common.KeyAccessToken)
	require.True(t, ok)
	assert.Equal(t, "T1", backup.Value)
}

func TestSync_RefreshFailureWithCacheKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", testProfile())
	h.api.MeFn = unauthorized

	p, err := h.c.SyncProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testProfile(), p)
	assert.True(t, h.c.IsAuthenticated())
	assert.Equal(t, testProfile(), h.c.CurrentUser())
}

func TestSync_Repeated401RefreshesOnceWithinWindow(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", testProfile())
	h.api.MeFn = unauthorized
	ctx := context.Background()

	_, err := h.c.SyncProfile(ctx)
	require.NoError(t, err)
	require.Len(t, h.api.refreshTokens(), 1)

	// past the sync guard, still inside the refresh guard
	h.clk.Advance(3 * time.Second)
	_, err = h.c.SyncProfile(ctx)
	require.NoError(t, err)
	assert.Len(t, h.api.meTokens(), 2)
	assert.Len(t, h.api.refreshTokens(), 1)

	h.clk.Advance(3 * time.Second)
	_, err = h.c.SyncProfile(ctx)
	require.NoError(t, err)
	assert.Len(t, h.api.refreshTokens(), 2)
}

func TestSync_RetryAfterRefreshFailsFallsBack(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	h.api.MeFn = unauthorized
	h.api.RefreshFn = func(string) (models.Tokens, error) { return models.Tokens{AccessToken: "T2"}, nil }

	_, err := h.c.SyncProfile(context.Background())
	require.ErrorIs(t, err, common.ErrTokenExpired)
	h.settle(t)

	assert.Equal(t, []string{"T1", "T2"}, h.api.meTokens())
	assert.False(t, h.c.IsAuthenticated())
}

func TestSync_ServerAndNetworkErrorsFallBackToCache(t *testing.T) {
	for name, kind := range map[string]error{
		"server":    common.ErrServerUnavailable,
		"network":   common.ErrNetworkUnavailable,
		"malformed": common.ErrMalformedResponse,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.seedSession(t, "T1", "R1", testProfile())
			h.api.MeFn = func(string) (*models.Profile, error) { return nil, apiErr(kind, 0) }

			p, err := h.c.SyncProfile(context.Background())
			require.NoError(t, err)
			assert.Equal(t, testProfile(), p)
			assert.True(t, h.c.IsAuthenticated())
			assert.Empty(t, h.api.refreshTokens())
		})
	}
}

func TestSync_ServerErrorWithoutCacheFailsButKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	h.api.MeFn = func(string) (*models.Profile, error) { return nil, apiErr(common.ErrServerUnavailable, 502) }

	_, err := h.c.SyncProfile(context.Background())
	require.ErrorIs(t, err, common.ErrServerUnavailable)
	h.settle(t)

	assert.True(t, h.c.IsAuthenticated())
	assert.Empty(t, h.api.logoutTokens())
}

func TestSync_ExpiredJWTSkipsFetch(t *testing.T) {
	exp := jwt.NewNumericDate(epoch.Add(-time.Minute))
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: exp}).SignedString([]byte("k"))
	require.NoError(t, err)

	h := newHarness(t)
	h.seedSession(t, expired, "R1", nil)
	h.api.RefreshFn = func(string) (models.Tokens, error) { return models.Tokens{AccessToken: "T2"}, nil }

	_, err = h.c.SyncProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"T2"}, h.api.meTokens())
}

func TestSync_NoTokenUsesCacheWithoutAuthenticating(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.WriteJSON(context.Background(), common.KeyUserProfile, testProfile()))

	p, err := h.c.SyncProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testProfile(), p)
	assert.False(t, h.c.IsAuthenticated())
	assert.Nil(t, h.c.CurrentUser())
	assert.Empty(t, h.api.meTokens())
}

func TestSync_NoTokenNoCacheIsUnauthenticated(t *testing.T) {
	h := newHarness(t)

	_, err := h.c.SyncProfile(context.Background())
	require.ErrorIs(t, err, common.ErrNotAuthenticated)
	assert.False(t, h.c.IsAuthenticated())
}

func TestSync_ConcurrentCallersShareOneFetch(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	release := make(chan struct{})
	h.api.MeFn = func(string) (*models.Profile, error) {
		<-release
		return testProfile(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.c.SyncProfile(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return len(h.api.meTokens()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Len(t, h.api.meTokens(), 1)
}

func TestRefreshProfile_BypassesGuards(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	ctx := context.Background()

	_, err := h.c.SyncProfile(ctx)
	require.NoError(t, err)
	_, err = h.c.RefreshProfile(ctx)
	require.NoError(t, err)
	assert.Len(t, h.api.meTokens(), 2)

	// a refresh a moment ago does not block an explicit reload
	h.api.MeFn = func(token string) (*models.Profile, error) {
		if token == "T1" {
			return unauthorized(token)
		}
		return testProfile(), nil
	}
	h.api.RefreshFn = func(string) (models.Tokens, error) { return models.Tokens{AccessToken: "T2"}, nil }
	require.NoError(t, h.store.WriteTime(ctx, common.KeyTokenRefreshTimestamp, h.clk.Now()))

	_, err = h.c.RefreshProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, h.api.refreshTokens())
	assert.Equal(t, "T2", h.c.Session().AccessToken)
}

func TestRefreshProfile_RequiresSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.RefreshProfile(context.Background())
	require.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestSync_ProfileFetchedForPreviousUserIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := &models.Profile{ID: 1, FullName: "Alice", Email: "alice@example.com", Role: models.RoleClient}
	bob := &models.Profile{ID: 2, FullName: "Bob", Email: "bob@example.com", Role: models.RoleWaiter}

	started := make(chan struct{})
	release := make(chan struct{})
	h.api.MeFn = func(token string) (*models.Profile, error) {
		if token == "TA" {
			close(started)
			<-release
			return alice, nil
		}
		return bob, nil
	}
	h.api.LoginTokens = models.Tokens{AccessToken: "TA", RefreshToken: "RA"}

	require.NoError(t, h.c.Login(ctx, "alice@example.com", "pw"))
	<-started
	h.c.Logout(ctx)

	h.api.mu.Lock()
	h.api.LoginTokens = models.Tokens{AccessToken: "TB", RefreshToken: "RB"}
	h.api.mu.Unlock()
	require.NoError(t, h.c.Login(ctx, "bob@example.com", "pw"))
	require.Eventually(t, func() bool { return len(h.api.meTokens()) == 2 }, time.Second, time.Millisecond)

	close(release)
	h.settle(t)

	assert.ElementsMatch(t, []string{"TA", "TB"}, h.api.meTokens())
	s := h.c.Session()
	assert.Equal(t, "TB", s.AccessToken)
	require.NotNil(t, s.User)
	assert.Equal(t, int64(2), s.User.ID)

	cached, err := models.ParseProfile(h.read(t, common.KeyUserProfile))
	require.NoError(t, err)
	assert.Equal(t, bob, cached)
	assert.Equal(t, "waiter", h.read(t, common.KeyUserRole))
}

func TestSync_RefreshForClosedSessionIsDropped(t *testing.T) {
	h := newHarness(t)
	h.seedSession(t, "T1", "R1", nil)
	ctx := context.Background()

	h.api.MeFn = unauthorized
	h.api.RefreshFn = func(string) (models.Tokens, error) {
		// the user logs out while the refresh is on the wire
		h.c.Logout(ctx)
		return models.Tokens{AccessToken: "T2", RefreshToken: "R2"}, nil
	}

	_, err := h.c.SyncProfile(ctx)
	require.ErrorIs(t, err, common.ErrRefreshFailed)
	h.settle(t)

	s := h.c.Session()
	assert.False(t, s.IsAuthenticated)
	assert.Empty(t, s.AccessToken)
	assert.Empty(t, h.read(t, common.KeyAccessToken))
	assert.Empty(t, h.read(t, common.KeyRefreshToken))
	assert.Equal(t, []string{"T1"}, h.api.meTokens())
}
