package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/restosession/internal/clock"
	"github.com/dmitrijs2005/restosession/internal/common"
	"github.com/dmitrijs2005/restosession/internal/logging"
)

// BackupEntry is the value written under "<key>_backup" before a key is
// cleared.
type BackupEntry struct {
	Value   string    `json:"value"`
	SavedAt time.Time `json:"saved_at"`
}

// ReplicatedStore composes tiers with a write-all, read-by-priority policy.
// Tiers are given strongest first.
type ReplicatedStore struct {
	tiers  []Tier
	clock  clock.Clock
	logger logging.Logger
}

func NewReplicatedStore(logger logging.Logger, clk clock.Clock, tiers ...Tier) *ReplicatedStore {
	return &ReplicatedStore{tiers: tiers, clock: clk, logger: logger.With("component", "credential_store")}
}

// Write stores value in every tier. Individual tier failures are logged;
// ErrNoTierAccepted is returned only if all of them failed. A tier that
// rejects the write has its old value dropped so it cannot shadow the new
// one on the next Read.
func (s *ReplicatedStore) Write(ctx context.Context, key, value string) error {
	accepted := 0
	for _, t := range s.tiers {
		if err := t.Set(ctx, key, value); err != nil {
			s.logger.Warn(ctx, "tier write failed", "tier", t.Name(), "key", key, "error", err)
			if derr := t.Delete(ctx, key); derr != nil {
				s.logger.Warn(ctx, "stale value left in tier", "tier", t.Name(), "key", key, "error", derr)
			}
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("write %s: %w", key, ErrNoTierAccepted)
	}
	return nil
}

// Read returns the first non-empty value in tier priority order and copies
// it into every other tier that is missing it or holds a different value.
func (s *ReplicatedStore) Read(ctx context.Context, key string) (string, bool) {
	for i, t := range s.tiers {
		v, ok, err := t.Get(ctx, key)
		if err != nil {
			s.logger.Warn(ctx, "tier read failed", "tier", t.Name(), "key", key, "error", err)
			continue
		}
		if !ok || v == "" {
			continue
		}
		s.promote(ctx, key, v, i)
		return v, true
	}
	return "", false
}

func (s *ReplicatedStore) promote(ctx context.Context, key, value string, hit int) {
	for i, t := range s.tiers {
		if i == hit {
			continue
		}
		if i > hit {
			if cur, ok, err := t.Get(ctx, key); err == nil && ok && cur == value {
				continue
			}
		}
		if err := t.Set(ctx, key, value); err != nil {
			s.logger.Warn(ctx, "tier promotion failed", "tier", t.Name(), "key", key, "error", err)
			continue
		}
		if i < hit {
			s.logger.Debug(ctx, "value promoted", "key", key, "from", s.tiers[hit].Name(), "to", t.Name())
		}
	}
}

// Remove deletes keys from every tier without keeping a backup.
func (s *ReplicatedStore) Remove(ctx context.Context, keys ...string) {
	for _, key := range keys {
		for _, t := range s.tiers {
			if err := t.Delete(ctx, key); err != nil {
				s.logger.Warn(ctx, "tier delete failed", "tier", t.Name(), "key", key, "error", err)
			}
		}
	}
}

// WriteMany stores values in every tier, in one batch where the tier
// supports it. Failure handling matches Write.
func (s *ReplicatedStore) WriteMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	accepted := 0
	for _, t := range s.tiers {
		if err := s.setAll(ctx, t, values); err != nil {
			s.logger.Warn(ctx, "tier batch write failed", "tier", t.Name(), "keys", len(values), "error", err)
			for key := range values {
				if derr := t.Delete(ctx, key); derr != nil {
					s.logger.Warn(ctx, "stale value left in tier", "tier", t.Name(), "key", key, "error", derr)
				}
			}
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("write %d keys: %w", len(values), ErrNoTierAccepted)
	}
	return nil
}

func (s *ReplicatedStore) setAll(ctx context.Context, t Tier, values map[string]string) error {
	if bt, ok := t.(BatchTier); ok {
		return bt.SetMany(ctx, values)
	}
	for key, value := range values {
		if err := t.Set(ctx, key, value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// Backup copies the current value of each key into "<key>_backup" in one
// batch. Missing keys are skipped, and a backup that already holds the
// current value is left as it is.
func (s *ReplicatedStore) Backup(ctx context.Context, keys ...string) {
	now := s.clock.Now().UTC()
	batch := make(map[string]string, len(keys))
	for _, key := range keys {
		v, ok := s.Read(ctx, key)
		if !ok {
			continue
		}
		if prev, ok := s.ReadBackup(ctx, key); ok && prev.Value == v {
			continue
		}
		b, err := json.Marshal(BackupEntry{Value: v, SavedAt: now})
		if err != nil {
			continue
		}
		batch[common.BackupKey(key)] = string(b)
	}
	if err := s.WriteMany(ctx, batch); err != nil {
		s.logger.Warn(ctx, "backup failed", "keys", len(batch), "error", err)
	}
}

// Clear backs up keys, records logout_timestamp and then removes keys from
// every tier.
func (s *ReplicatedStore) Clear(ctx context.Context, keys ...string) {
	s.Backup(ctx, keys...)
	if err := s.WriteTime(ctx, common.KeyLogoutTimestamp, s.clock.Now()); err != nil {
		s.logger.Warn(ctx, "logout timestamp not recorded", "error", err)
	}
	s.Remove(ctx, keys...)
}

// ReadBackup returns the preserved value of key, if any.
func (s *ReplicatedStore) ReadBackup(ctx context.Context, key string) (BackupEntry, bool) {
	var b BackupEntry
	ok, err := s.ReadJSON(ctx, common.BackupKey(key), &b)
	if err != nil || !ok {
		return BackupEntry{}, false
	}
	return b, true
}

// WriteJSON stores v encoded as JSON.
func (s *ReplicatedStore) WriteJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Write(ctx, key, string(b))
}

// ReadJSON decodes the value of key into v. It reports false when the key
// is absent.
func (s *ReplicatedStore) ReadJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok := s.Read(ctx, key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// WriteTime stores t as RFC 3339 with nanoseconds.
func (s *ReplicatedStore) WriteTime(ctx context.Context, key string, t time.Time) error {
	return s.Write(ctx, key, t.UTC().Format(time.RFC3339Nano))
}

// ReadTime returns the time stored under key.
func (s *ReplicatedStore) ReadTime(ctx context.Context, key string) (time.Time, bool) {
	raw, ok := s.Read(ctx, key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.logger.Warn(ctx, "unparseable timestamp", "key", key, "error", err)
		return time.Time{}, false
	}
	return t, true
}
