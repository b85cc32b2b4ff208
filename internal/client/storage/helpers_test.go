package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/migrations"
	"github.com/dmitrijs2005/restosession/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/restosession/internal/clock"
	"github.com/dmitrijs2005/restosession/internal/logging"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newDurableTier(t *testing.T) (*DurableTier, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.Up(db, "."))

	return NewDurableTier(metadata.NewSQLiteRepository(db)), db
}

var errTierDown = errors.New("tier down")

// flakyTier is an in-memory Tier whose operations can be switched to fail.
type flakyTier struct {
	mu       sync.Mutex
	name     string
	values   map[string]string
	failSet  bool
	failGet  bool
	failDel  bool
	setCalls int
}

func newFlakyTier(name string) *flakyTier {
	return &flakyTier{name: name, values: map[string]string{}}
}

func (f *flakyTier) Name() string { return f.name }

func (f *flakyTier) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return "", false, errTierDown
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *flakyTier) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.failSet {
		return errTierDown
	}
	f.values[key] = value
	return nil
}

func (f *flakyTier) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDel {
		return errTierDown
	}
	delete(f.values, key)
	return nil
}

func (f *flakyTier) peek(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func newStore(tiers ...Tier) *ReplicatedStore {
	return NewReplicatedStore(logging.NewNop(), clock.Fake(epoch), tiers...)
}
