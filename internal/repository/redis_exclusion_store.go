package repository

import (
	"context"
	"fmt"
	"time"

	applogger "github.com/hislov/overdrive-bot/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	exclusionKey = "overdrive:exclusions"
	exclusionTTL = 7 * 24 * time.Hour
)

// RedisExclusionStore holds the cross-run set of tickers that previously
// produced an infeasible or rejected plan. Read once at run start, written
// once at run end.
type RedisExclusionStore struct {
	client *redis.Client
	l      *applogger.Logger
}

// NewRedisExclusionStore creates the exclusion store.
func NewRedisExclusionStore(client *redis.Client, l *applogger.Logger) *RedisExclusionStore {
	return &RedisExclusionStore{client: client, l: l}
}

// Load returns the current exclusion set. A missing key is an empty set.
func (s *RedisExclusionStore) Load(ctx context.Context) (map[string]bool, error) {
	members, err := s.client.SMembers(ctx, exclusionKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}

	out := make(map[string]bool, len(members))
	for _, m := range members {
		out[m] = true
	}
	return out, nil
}

// Save replaces the exclusion set atomically and refreshes its TTL.
func (s *RedisExclusionStore) Save(ctx context.Context, tickers map[string]bool) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, exclusionKey)
	if len(tickers) > 0 {
		members := make([]interface{}, 0, len(tickers))
		for t, on := range tickers {
			if on {
				members = append(members, t)
			}
		}
		if len(members) > 0 {
			pipe.SAdd(ctx, exclusionKey, members...)
			pipe.Expire(ctx, exclusionKey, exclusionTTL)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save exclusions: %w", err)
	}

	s.l.Info("exclusion set saved", applogger.Int("size", len(tickers)))
	return nil
}
