package cache

import (
	"context"
	"time"
)

// LayeredCache is a two-level cache: L1 in-process memory over L2 Redis.
// Reads fill L1 on an L2 hit; writes go through both levels.
type LayeredCache struct {
	mem   *MemoryCache
	redis *RedisCache
}

// NewLayeredCache builds a layered cache. memSize <= 0 uses the memory
// cache default.
func NewLayeredCache(redisCache *RedisCache, memSize int) *LayeredCache {
	return &LayeredCache{mem: NewMemoryCache(memSize), redis: redisCache}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.redis.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, value, expiration)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.redis.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, dest, 0)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.redis.Delete(ctx, keys...)
}

// Close closes the Redis layer; the memory layer needs no teardown.
func (lc *LayeredCache) Close() error { return lc.redis.Close() }
