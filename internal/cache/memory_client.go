package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryClient is a bounded in-process LRU cache. Entries share one TTL, fixed at
// construction; the ttl passed to Set is ignored.
type MemoryClient struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryClient creates an LRU holding at most size entries. A zero ttl disables
// expiry.
func NewMemoryClient(size int, ttl time.Duration) *MemoryClient {
	if size <= 0 {
		size = 256
	}
	return &MemoryClient{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get retrieves a value from cache.
func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

// Set stores a copy of value.
func (c *MemoryClient) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Delete removes a value from cache.
func (c *MemoryClient) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len reports the number of live entries.
func (c *MemoryClient) Len() int {
	return c.lru.Len()
}

// Close is a no-op for memory cache.
func (c *MemoryClient) Close() error {
	return nil
}
