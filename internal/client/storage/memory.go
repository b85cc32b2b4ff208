package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/restosession/internal/clock"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryTier is an in-process session-scoped tier used when no Redis is
// configured. Like a browser's session storage it is lost on exit.
type MemoryTier struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clock
	ttl     time.Duration
}

func NewMemoryTier(clk clock.Clock, ttl time.Duration) *MemoryTier {
	return &MemoryTier{entries: make(map[string]memoryEntry), clock: clk, ttl: ttl}
}

func (t *MemoryTier) Name() string { return "session" }

func (t *MemoryTier) Get(_ context.Context, key string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !t.clock.Now().Before(e.expires) {
		delete(t.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (t *MemoryTier) Set(_ context.Context, key, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := memoryEntry{value: value}
	if t.ttl > 0 {
		e.expires = t.clock.Now().Add(t.ttl)
	}
	t.entries[key] = e
	return nil
}

func (t *MemoryTier) Delete(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	return nil
}
