package scopeindex

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIndex shares the scope mapping across processes as Redis sets, so an
// invalidation on one replica also finds the keys its peers wrote. Optionally
// a TTL is applied to scope sets to prevent unbounded growth; if a set
// expires, invalidation for that scope simply finds nothing and the entries
// age out by their own TTLs.
type RedisIndex struct {
	rdb redis.UniversalClient
	ttl time.Duration // optional TTL for scope sets; 0 disables expiry
}

var _ Index = (*RedisIndex)(nil)

func NewRedisIndex(client redis.UniversalClient, ttl time.Duration) *RedisIndex {
	return &RedisIndex{rdb: client, ttl: ttl}
}

func (s *RedisIndex) key(scope string) string { return "scopeidx:" + scope }

func (s *RedisIndex) Add(ctx context.Context, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	if err := s.rdb.SAdd(ctx, s.key(scope), members...).Err(); err != nil {
		return err
	}
	if s.ttl > 0 {
		return s.rdb.Expire(ctx, s.key(scope), s.ttl).Err()
	}
	return nil
}

func (s *RedisIndex) Keys(ctx context.Context, scope string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.key(scope)).Result()
}

func (s *RedisIndex) Remove(ctx context.Context, scope, key string) error {
	return s.rdb.SRem(ctx, s.key(scope), key).Err()
}

func (s *RedisIndex) Drop(ctx context.Context, scope string) error {
	return s.rdb.Del(ctx, s.key(scope)).Err()
}

func (s *RedisIndex) Cleanup(time.Duration) {} // not applicable

func (s *RedisIndex) Close(context.Context) error { return nil }
