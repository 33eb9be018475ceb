package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process Store. Every entry lives for the TTL given at
// construction; the per-call ttl of Set is ignored.
type MemoryStore struct {
	cache *lru.LRU[string, []byte]
}

// NewMemoryStore creates an LRU holding at most size entries
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size < 10 {
		size = 10
	}
	return &MemoryStore{cache: lru.NewLRU[string, []byte](size, nil, ttl)}
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

// Set implements Store
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.cache.Add(key, value)
	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.cache.Remove(k)
	}
	return nil
}

// Name implements Store
func (s *MemoryStore) Name() string { return "memory" }

// Close implements Store
func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
