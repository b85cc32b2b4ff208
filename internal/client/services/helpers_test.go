package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/client"
	"github.com/dmitrijs2005/restosession/internal/client/device"
	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/restosession/internal/client/storage"
	"github.com/dmitrijs2005/restosession/internal/clock"
	"github.com/dmitrijs2005/restosession/internal/common"
	"github.com/dmitrijs2005/restosession/internal/logging"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testProfile() *models.Profile {
	return &models.Profile{ID: 7, FullName: "Ann Diner", Email: "ann@example.com", Role: models.RoleClient}
}

func apiErr(kind error, status int) error {
	return &client.APIError{Kind: kind, Endpoint: "/api/auth/test", Status: status}
}

// ---- fake client ----

// fakeAPI implements client.Client. Login consumes LoginErrs one per call
// and then succeeds with LoginTokens.
type fakeAPI struct {
	mu sync.Mutex

	LoginErrs   []error
	LoginTokens models.Tokens
	LoginCalls  int
	LastLogin   [2]string

	RegisterTokens models.Tokens
	RegisterErr    error
	LastRegister   client.RegisterRequest

	MeFn     func(token string) (*models.Profile, error)
	MeTokens []string

	RefreshFn     func(refreshToken string) (models.Tokens, error)
	RefreshTokens []string

	LogoutErr    error
	LogoutTokens []string

	PingErr error
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (models.Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginCalls++
	f.LastLogin = [2]string{username, password}
	if len(f.LoginErrs) > 0 {
		err := f.LoginErrs[0]
		f.LoginErrs = f.LoginErrs[1:]
		return models.Tokens{}, err
	}
	return f.LoginTokens, nil
}

func (f *fakeAPI) Register(_ context.Context, req client.RegisterRequest) (models.Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastRegister = req
	return f.RegisterTokens, f.RegisterErr
}

func (f *fakeAPI) Me(_ context.Context, token string) (*models.Profile, error) {
	f.mu.Lock()
	f.MeTokens = append(f.MeTokens, token)
	fn := f.MeFn
	f.mu.Unlock()
	if fn == nil {
		return testProfile(), nil
	}
	return fn(token)
}

func (f *fakeAPI) Refresh(_ context.Context, refreshToken string) (models.Tokens, error) {
	f.mu.Lock()
	f.RefreshTokens = append(f.RefreshTokens, refreshToken)
	fn := f.RefreshFn
	f.mu.Unlock()
	if fn == nil {
		return models.Tokens{}, apiErr(common.ErrRefreshFailed, 401)
	}
	return fn(refreshToken)
}

func (f *fakeAPI) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutTokens = append(f.LogoutTokens, token)
	return f.LogoutErr
}

func (f *fakeAPI) SendLog(context.Context, client.LogEntry) error { return nil }

func (f *fakeAPI) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

func (f *fakeAPI) loginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LoginCalls
}

func (f *fakeAPI) meTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.MeTokens...)
}

func (f *fakeAPI) refreshTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.RefreshTokens...)
}

func (f *fakeAPI) logoutTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.LogoutTokens...)
}

// ---- fake reporter ----

type report struct {
	Err      error
	Endpoint string
	Info     map[string]any
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []report
}

func (r *fakeReporter) Report(err error, endpoint string, info map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report{Err: err, Endpoint: endpoint, Info: info})
}

func (r *fakeReporter) all() []report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]report(nil), r.reports...)
}

// ---- harness ----

type harness struct {
	c        *SessionController
	api      *fakeAPI
	store    *storage.ReplicatedStore
	clk      *clock.FakeClock
	reporter *fakeReporter
	online   *atomic.Bool
	class    *atomic.Int32
	network  models.NetworkInfo
	cfg      Config
}

type harnessOption func(*harness)

func mobile(h *harness) { h.class.Store(int32(device.Mobile)) }

func offline(h *harness) { h.online.Store(false) }

func degraded(h *harness) { h.network = models.NetworkInfo{EffectiveType: "2g"} }

func maxAttempts(n int) harnessOption {
	return func(h *harness) { h.cfg.LoginMaxAttempts = n }
}

func newTestStore(t *testing.T, clk clock.Clock) *storage.ReplicatedStore {
	t.Helper()
	ctx := context.Background()
	db, err := client.InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return storage.NewReplicatedStore(logging.NewNop(), clk,
		storage.NewDurableTier(metadata.NewSQLiteRepository(db)),
		storage.NewMemoryTier(clk, 24*time.Hour),
	)
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		api:      &fakeAPI{LoginTokens: models.Tokens{AccessToken: "T1", RefreshToken: "R1"}},
		clk:      clock.Fake(epoch),
		reporter: &fakeReporter{},
		online:   &atomic.Bool{},
		class:    &atomic.Int32{},
		cfg:      DefaultConfig(),
	}
	h.online.Store(true)
	for _, o := range opts {
		o(h)
	}
	h.store = newTestStore(t, h.clk)

	network := h.network
	h.c = NewSessionController(Dependencies{
		API:      h.api,
		Store:    h.store,
		Reporter: h.reporter,
		Detect:   func() device.Class { return device.Class(h.class.Load()) },
		Network:  func() models.NetworkInfo { return network },
		Online:   h.online.Load,
		Clock:    h.clk,
		Logger:   logging.NewNop(),
	}, h.cfg)
	return h
}

// settle waits for background work started by the controller.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.c.Close(ctx))
}

// seedSession stores an authenticated session as a previous run would
// have left it, then restores it.
func (h *harness) seedSession(t *testing.T, token, refresh string, profile *models.Profile) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.store.Write(ctx, common.KeyAccessToken, token))
	if refresh != "" {
		require.NoError(t, h.store.Write(ctx, common.KeyRefreshToken, refresh))
	}
	if profile != nil {
		require.NoError(t, h.store.WriteJSON(ctx, common.KeyUserProfile, profile))
	}
	h.c.Restore(ctx)
}

func (h *harness) read(t *testing.T, key string) string {
	t.Helper()
	v, _ := h.store.Read(context.Background(), key)
	return v
}
