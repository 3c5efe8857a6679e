package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis enforces fixed-window attempt limits with Redis counters.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis creates a limiter writing keys under prefix.
func NewRedis(redisClient redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "goauthz"
	}
	return &Redis{redis: redisClient, prefix: prefix}
}

func (l *Redis) key(key string) string {
	return l.prefix + ":rl:" + key
}

// Check returns [ErrRateLimited] when key has at least limit attempts in the
// current window. Missing keys are under the limit.
func (l *Redis) Check(ctx context.Context, key string, limit int) error {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(limit) {
		return ErrRateLimited
	}
	return nil
}

// Record counts one attempt against key. The window starts at the first
// attempt and lasts window.
func (l *Redis) Record(ctx context.Context, key string, limit int, window time.Duration) error {
	count, err := l.redis.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.PExpire(ctx, l.key(key), window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(limit) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter of key.
func (l *Redis) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
