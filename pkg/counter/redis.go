package counter

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore issues counters with INCR, which is atomic on the server.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "tsrc"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Next(ctx context.Context, scope string) (uint64, error) {
	key := fmt.Sprintf("%s:counter:%s", s.prefix, scope)
	value, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("counter: redis incr %s: %w", key, err)
	}
	return uint64(value), nil
}

// RedisUsedSet implements the replay gate with SETNX: the first caller
// sets the key and wins, later callers see it already set.
type RedisUsedSet struct {
	client *redis.Client
	prefix string
}

func NewRedisUsedSet(client *redis.Client, prefix string) *RedisUsedSet {
	if prefix == "" {
		prefix = "tsrc"
	}
	return &RedisUsedSet{client: client, prefix: prefix}
}

func (s *RedisUsedSet) key(value uint64) string {
	return fmt.Sprintf("%s:used:%d", s.prefix, value)
}

func (s *RedisUsedSet) MarkUsed(ctx context.Context, value uint64) (bool, error) {
	won, err := s.client.SetNX(ctx, s.key(value), 1, 0).Result()
	if err != nil {
		return false, fmt.Errorf("counter: redis setnx %d: %w", value, err)
	}
	return won, nil
}

func (s *RedisUsedSet) Contains(ctx context.Context, value uint64) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(value)).Result()
	if err != nil {
		return false, fmt.Errorf("counter: redis exists %d: %w", value, err)
	}
	return n > 0, nil
}
