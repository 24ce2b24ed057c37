package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

const defaultMemoryMaxCost = 64 << 20

// MemoryStore is an in-process store backed by ristretto. It is meant for
// single-instance deployments and local development; entries are not shared
// between processes.
type MemoryStore struct {
	cache *ristretto.Cache
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a store bounded by maxCost bytes of payload.
func NewMemoryStore(maxCost int64) (*MemoryStore, error) {
	if maxCost <= 0 {
		maxCost = defaultMemoryMaxCost
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("platform/cache: ristretto: %w", err)
	}
	return &MemoryStore{cache: c}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	payload, ok := v.([]byte)
	if !ok {
		s.cache.Del(key)
		return nil, false, nil
	}
	return payload, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("platform/cache: set %s: ttl must be positive", key)
	}
	stored := append([]byte(nil), value...)
	if !s.cache.SetWithTTL(key, stored, int64(len(stored)), ttl) {
		return fmt.Errorf("platform/cache: set %s: rejected by admission policy", key)
	}
	// ristretto applies writes asynchronously.
	s.cache.Wait()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Del(key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close stops the ristretto background goroutines.
func (s *MemoryStore) Close() {
	s.cache.Close()
}
