package cache

import (
	"context"
	"time"
)

// Store is the key-value backend behind Service. Implementations return
// (nil, false, nil) on a miss and a non-nil error only when the backend itself fails.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// NopStore never holds anything; every lookup is a miss
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NopStore) Delete(context.Context, string) error { return nil }
