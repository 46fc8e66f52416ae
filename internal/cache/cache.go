// Package cache stores encoded real-time responses keyed by request content.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and sizes a cache backend.
type Config struct {
	// RedisURL selects the Redis backend, e.g. redis://localhost:6379/0.
	RedisURL string
	Prefix   string
	// Size is the in-memory entry limit; zero disables the memory cache.
	Size int
	TTL  time.Duration
}

// Open returns a Redis client when a URL is configured, otherwise a memory client. It
// returns nil when caching is disabled.
func Open(cfg Config) (Client, error) {
	if cfg.RedisURL != "" {
		c, err := NewRedisClient(RedisConfig{URL: cfg.RedisURL, Prefix: cfg.Prefix})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	if cfg.Size <= 0 {
		return nil, nil
	}
	return NewMemoryClient(cfg.Size, cfg.TTL), nil
}

// CacheKey generates a cache key from components.
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// ResponseKey identifies a real-time response by payload digest, request content type
// and accepted response type.
func ResponseKey(body []byte, contentType, accept string) string {
	sum := sha256.Sum256(body)
	return CacheKey("rt", hex.EncodeToString(sum[:]), strings.ToLower(contentType), strings.ToLower(accept))
}
