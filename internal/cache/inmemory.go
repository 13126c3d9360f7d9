package cache

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"
	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/logger"
)

// DefaultExpiration is the default expiration time for cache entries
const DefaultExpiration = 30 * time.Minute

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 1 * time.Hour

// InMemoryCache implements the Cache interface using github.com/patrickmn/go-cache
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
	logger  *logger.Logger
}

// NewInMemoryCache creates a new InMemoryCache instance
func NewInMemoryCache(cfg *config.Configuration, logger *logger.Logger) Cache {
	expiration := cfg.Cache.DefaultExpiration
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	cleanup := cfg.Cache.CleanupInterval
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}

	logger.Infow("initializing in-memory cache",
		"enabled", cfg.Cache.Enabled,
		"default_expiration", expiration,
		"cleanup_interval", cleanup,
	)

	return &InMemoryCache{
		cache:   goCache.New(expiration, cleanup),
		enabled: cfg.Cache.Enabled,
		logger:  logger,
	}
}

// Get retrieves a value from the cache
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}
	span := startSpan(ctx, "get", key)
	value, found := c.cache.Get(key)
	finishSpan(span, found)
	return value, found
}

// Set adds a value to the cache with the specified expiration
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}
	span := startSpan(ctx, "set", key)
	c.cache.Set(key, value, expiration)
	finishSpan(span, true)
}

// Add stores the value only when the key is not present
func (c *InMemoryCache) Add(ctx context.Context, key string, value interface{}, expiration time.Duration) bool {
	if !c.enabled {
		// nothing is remembered, so every caller is first
		return true
	}
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}
	span := startSpan(ctx, "add", key)
	added := c.cache.Add(key, value, expiration) == nil
	finishSpan(span, added)
	return added
}

// Delete removes a key from the cache
func (c *InMemoryCache) Delete(ctx context.Context, key string) {
	if !c.enabled {
		return
	}
	span := startSpan(ctx, "delete", key)
	c.cache.Delete(key)
	finishSpan(span, true)
}
