package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisUnlockCache struct {
	client *redis.Client
}

func NewRedisUnlockCache(addr string, password string, db int) *RedisUnlockCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisUnlockCache{client: client}
}

func (c *RedisUnlockCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisUnlockCache) Close() error {
	return c.client.Close()
}

func (c *RedisUnlockCache) Get(ctx context.Context, principal string) (time.Time, bool, error) {
	val, err := c.client.Get(ctx, unlockKey(principal)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	expiresAt, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return expiresAt, true, nil
}

func (c *RedisUnlockCache) Set(ctx context.Context, principal string, expiresAt time.Time, ttl time.Duration) error {
	return c.client.Set(ctx, unlockKey(principal), expiresAt.UTC().Format(time.RFC3339), ttl).Err()
}

func (c *RedisUnlockCache) Delete(ctx context.Context, principal string) error {
	return c.client.Del(ctx, unlockKey(principal)).Err()
}

func unlockKey(principal string) string {
	return "pin_unlock:" + principal
}
