package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const seenKeyPrefix = "intake:seen:"

// RedisSeenCache records which feed items intake already processed so later
// cycles skip the scoring call. Misses are harmless; the posts unique
// constraint stays the source of truth.
type RedisSeenCache struct {
	client *redis.Client
}

func ConnectSeenCache(addr string) (*RedisSeenCache, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		opt = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSeenCache{client: client}, nil
}

func (c *RedisSeenCache) Seen(ctx context.Context, externalID string) (bool, error) {
	err := c.client.Get(ctx, seenKeyPrefix+externalID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	return true, nil
}

func (c *RedisSeenCache) MarkSeen(ctx context.Context, externalID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, seenKeyPrefix+externalID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisSeenCache) Close() error {
	return c.client.Close()
}
