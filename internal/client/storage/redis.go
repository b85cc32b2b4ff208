package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys in a shared Redis.
const DefaultRedisPrefix = "restosession:"

// RedisTier is the session-scoped tier backed by Redis. Entries expire
// after ttl; a zero ttl keeps them until deleted.
type RedisTier struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisTier(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisTier {
	return &RedisTier{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (t *RedisTier) Name() string { return "session" }

func (t *RedisTier) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := t.rdb.Get(ctx, t.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key, value string) error {
	if err := t.rdb.Set(ctx, t.prefix+key, value, t.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (t *RedisTier) Delete(ctx context.Context, key string) error {
	if err := t.rdb.Del(ctx, t.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
