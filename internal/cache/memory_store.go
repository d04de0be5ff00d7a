package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/viccon/sturdyc"
)

// MemoryConfig sizes the in-process store
type MemoryConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          256,
		TTL:                DefaultTTL,
		EvictionPercentage: 10,
	}
}

func (c MemoryConfig) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("cache capacity must be positive, got %d", c.Capacity)
	case c.NumShards <= 0:
		return fmt.Errorf("cache shard count must be positive, got %d", c.NumShards)
	case c.NumShards > c.Capacity:
		return fmt.Errorf("cache shard count %d exceeds capacity %d", c.NumShards, c.Capacity)
	case c.TTL <= 0:
		return fmt.Errorf("cache ttl must be positive, got %s", c.TTL)
	case c.EvictionPercentage < 0 || c.EvictionPercentage > 100:
		return fmt.Errorf("cache eviction percentage must be within 0..100, got %d", c.EvictionPercentage)
	}
	return nil
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a sharded in-process store. sturdyc enforces the configured TTL
// as an upper bound; the per-call ttl is enforced by the entry deadline.
type MemoryStore struct {
	client *sturdyc.Client[memoryEntry]
	now    func() time.Time
}

func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := sturdyc.New[memoryEntry](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage)
	return &MemoryStore{client: client, now: time.Now}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		s.client.Delete(key)
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.client.Set(key, memoryEntry{data: value, expiresAt: s.now().Add(ttl)})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// Size reports the number of entries held, including expired ones not yet evicted
func (s *MemoryStore) Size() int {
	return s.client.Size()
}
