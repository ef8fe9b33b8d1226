package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss signals a key that is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the minimal cache surface the pipeline needs. Values are
// JSON-serialized by implementations.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Key builds a namespaced cache key.
func Key(parts ...interface{}) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += fmt.Sprintf("%v", p)
	}
	return key
}
