// Package cache holds the Redis-backed OTP resend cooldown.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "otp:cooldown:"

// Cooldown rejects a second OTP request for the same key within its window.
type Cooldown interface {
	// Acquire claims the key for the window. A positive wait means the key is
	// still held and the caller should retry after that long.
	Acquire(ctx context.Context, key string) (time.Duration, error)
	// Release drops a claim whose request did not complete.
	Release(ctx context.Context, key string) error
}

type redisCooldown struct {
	client *redis.Client
	window time.Duration
}

func NewRedisCooldown(client *redis.Client, window time.Duration) Cooldown {
	return &redisCooldown{client: client, window: window}
}

func (c *redisCooldown) Acquire(ctx context.Context, key string) (time.Duration, error) {
	if c.window <= 0 {
		return 0, nil
	}
	k := keyPrefix + key
	ok, err := c.client.SetNX(ctx, k, time.Now().Unix(), c.window).Result()
	if err != nil {
		return 0, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		return 0, nil
	}

	ttl, err := c.client.TTL(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl, nil
}

func (c *redisCooldown) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

type noopCooldown struct{}

// NewNoopCooldown is used when Redis is not configured.
func NewNoopCooldown() Cooldown { return noopCooldown{} }

func (noopCooldown) Acquire(context.Context, string) (time.Duration, error) { return 0, nil }

func (noopCooldown) Release(context.Context, string) error { return nil }

// NewRedisClient connects and pings. Callers fall back to NewNoopCooldown on error.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("Connected to Redis")
	return client, nil
}
