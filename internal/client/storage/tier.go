package storage

import (
	"context"
	"errors"
)

var (
	// ErrNoTierAccepted is returned by Write when every tier failed.
	ErrNoTierAccepted = errors.New("no storage tier accepted the write")
	// ErrCookieTooLarge is returned by CookieTier for values that would not
	// fit in a single cookie.
	ErrCookieTooLarge = errors.New("value too large for cookie")
)

// Tier is one independent persistence backend.
type Tier interface {
	// Name identifies the tier in logs.
	Name() string
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
}

// BatchTier is a Tier that can apply several writes as one unit.
type BatchTier interface {
	Tier
	SetMany(ctx context.Context, values map[string]string) error
}
