package ratelimit

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter shares a fixed-window counter across instances through Redis.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
}

func NewRedisLimiter(client *redis.Client, cfg Config, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client: client,
		cfg:    cfg.normalized(),
		prefix: prefix,
	}
}

func (l *RedisLimiter) Config() Config { return l.cfg }

// Allow fails open: on a Redis error the request is allowed and the error is returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true}, fmt.Errorf("redis error: %w", err)
	}

	remaining := ttl.Val()
	// first hit in a window, or a key that lost its expiry
	if remaining < 0 {
		if err := l.client.PExpire(ctx, redisKey, l.cfg.Window).Err(); err != nil {
			return Decision{Allowed: true}, fmt.Errorf("redis error: %w", err)
		}
		remaining = l.cfg.Window
	}

	if incr.Val() <= int64(l.cfg.Requests) {
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: false, RetryAfter: remaining}, nil
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, fmt.Sprintf("%s:%s", l.prefix, key)).Err()
}

var _ Limiter = (*RedisLimiter)(nil)
