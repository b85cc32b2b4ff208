package storage

import (
	"context"

	"github.com/dmitrijs2005/restosession/internal/client/repositories/metadata"
)

// DurableTier persists values in the local metadata repository.
type DurableTier struct {
	repo metadata.Repository
}

func NewDurableTier(repo metadata.Repository) *DurableTier {
	return &DurableTier{repo: repo}
}

func (t *DurableTier) Name() string { return "durable" }

func (t *DurableTier) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := t.repo.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return string(v), true, nil
}

func (t *DurableTier) Set(ctx context.Context, key, value string) error {
	return t.repo.Set(ctx, key, []byte(value))
}

// SetMany writes all values in one transaction.
func (t *DurableTier) SetMany(ctx context.Context, values map[string]string) error {
	batch := make(map[string][]byte, len(values))
	for k, v := range values {
		batch[k] = []byte(v)
	}
	return t.repo.SetMany(ctx, batch)
}

func (t *DurableTier) Delete(ctx context.Context, key string) error {
	return t.repo.Delete(ctx, key)
}
