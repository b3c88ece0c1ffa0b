package history

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chatbot:history:"

// RedisStore keeps each session in a list trimmed to maxEntries. Every append
// refreshes the TTL.
type RedisStore struct {
	client     redis.Cmdable
	maxEntries int
	ttl        time.Duration
}

func NewRedisStore(client redis.Cmdable, maxEntries int, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, maxEntries: pairedMax(maxEntries), ttl: ttl}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, entries ...string) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, len(entries))
	for i, e := range entries {
		values[i] = e
	}

	key := redisKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.maxEntries), -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string, limit int) ([]string, error) {
	limit = effectiveLimit(limit, s.maxEntries)
	out, err := s.client.LRange(ctx, redisKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
