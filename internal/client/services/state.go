package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/client/storage"
	"github.com/dmitrijs2005/restosession/internal/common"
	"github.com/dmitrijs2005/restosession/internal/logging"
)

// sessionState owns the in-memory Session. Every mutation re-establishes
// the Session invariants and persists the snapshot while the lock is held,
// so the stored snapshot never lags behind a later mutation.
type sessionState struct {
	mu       sync.RWMutex
	session  models.Session
	store    *storage.ReplicatedStore
	logger   logging.Logger
	capacity int
}

func newSessionState(store *storage.ReplicatedStore, logger logging.Logger, capacity int) *sessionState {
	return &sessionState{store: store, logger: logger, capacity: capacity}
}

func (s *sessionState) get() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Clone()
}

func (s *sessionState) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.AccessToken
}

func (s *sessionState) authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated
}

func (s *sessionState) mutate(ctx context.Context, fn func(*models.Session)) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.session)
	if s.session.AccessToken == "" {
		s.session.IsAuthenticated = false
	}
	if !s.session.IsAuthenticated {
		s.session.User = nil
	}
	s.persist(ctx)
	return s.session.Clone()
}

// record prepends a login AttemptRecord to the diagnostics ring.
func (s *sessionState) record(ctx context.Context, rec models.AttemptRecord) {
	s.mutate(ctx, func(sess *models.Session) {
		sess.PushDiagnostic(rec.Clone(), s.capacity)
	})
}

func (s *sessionState) persist(ctx context.Context) {
	snap := s.session.Snapshot()
	if !snap.IsAuthenticated && snap.AccessToken == "" {
		s.store.Remove(ctx, common.KeySessionSnapshot)
		return
	}
	if err := s.store.WriteJSON(ctx, common.KeySessionSnapshot, snap); err != nil {
		s.logger.Warn(ctx, "session snapshot not persisted", "error", err)
	}
}
