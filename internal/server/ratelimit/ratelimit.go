// Package ratelimit counts attempts per key in fixed windows stored in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "studentperf:ratelimit:"

// Limiter admits or rejects one attempt for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// RedisLimiter allows at most limit attempts per key in each window. The
// window starts with the first attempt and is not extended by later ones.
type RedisLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
}

func NewRedisLimiter(rdb redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: int64(limit), window: window}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.limit <= 0 || r.window <= 0 {
		return true, nil
	}

	k := keyPrefix + key
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}

	return incr.Val() <= r.limit, nil
}

// Reset forgets the attempts recorded for key.
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	if r == nil {
		return nil
	}
	if err := r.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("ratelimit reset: %w", err)
	}
	return nil
}

// NopLimiter admits everything.
type NopLimiter struct{}

func (NopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }
func (NopLimiter) Reset(context.Context, string) error         { return nil }
