package cache

import (
	"context"
	"errors"
	"time"

	"factorlab/internal/config"
	"factorlab/internal/logger"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache is a small read-through cache used for calendar lookups and
// hot factor reads. Values are JSON-serialized by the implementations.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// New creates a cache from configuration. When redis is disabled or
// unreachable it falls back to the in-memory implementation so the
// pipeline keeps working on a laptop with no redis around.
func New(cfg config.RedisConfig) Cache {
	if !cfg.Enabled {
		return NewMemoryCache(0)
	}
	rc, err := NewRedisCache(cfg)
	if err != nil {
		logger.Warn("redis unavailable, falling back to memory cache",
			"addr", cfg.Addr, "error", err.Error())
		return NewMemoryCache(0)
	}
	return rc
}
