package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

func (m memoryItem) expired() bool { return time.Now().After(m.expireAt) }

// MemoryCache is an in-process JSON cache with lazy expiry and a hard size
// cap (oldest-expiry eviction when full).
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]memoryItem
	maxSize int
}

// NewMemoryCache creates an in-memory cache. maxSize <= 0 means 1000.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{data: make(map[string]memoryItem), maxSize: maxSize}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if len(mc.data) >= mc.maxSize {
		mc.evictOne()
	}
	mc.data[key] = memoryItem{data: b, expireAt: time.Now().Add(expiration)}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item, ok := mc.data[key]
	if ok && item.expired() {
		delete(mc.data, key)
		ok = false
	}
	mc.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(item.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

func (mc *MemoryCache) Close() error { return nil }

// evictOne drops the entry closest to expiry. Caller holds the lock.
func (mc *MemoryCache) evictOne() {
	var victim string
	var soonest time.Time
	for k, v := range mc.data {
		if victim == "" || v.expireAt.Before(soonest) {
			victim = k
			soonest = v.expireAt
		}
	}
	if victim != "" {
		delete(mc.data, victim)
	}
}
