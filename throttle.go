package goAuthz

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAuthz/internal/rate"
	"github.com/redis/go-redis/v9"
)

// Throttle counts failed attempts per key. The engine calls Check before an
// attempt, Record after a failure and Reset after a success. Implementations
// return [ErrThrottled] when the key is over its limit and wrap backend
// failures in [ErrUnavailable].
type Throttle interface {
	Check(ctx context.Context, key string, limit int) error
	Record(ctx context.Context, key string, limit int, window time.Duration) error
	Reset(ctx context.Context, key string) error
}

// throttle maps the errors of an internal/rate limiter onto the engine
// sentinels.
type throttle struct {
	l Throttle
}

// NewRedisThrottle returns a fixed-window throttle shared by every engine
// instance using the same Redis and prefix.
func NewRedisThrottle(client redis.UniversalClient, prefix string) Throttle {
	return throttle{l: rate.NewRedis(client, prefix)}
}

// NewLocalThrottle returns an in-process token-bucket throttle. now may be
// nil.
func NewLocalThrottle(now func() time.Time) Throttle {
	return throttle{l: rate.NewLocal(now)}
}

func (t throttle) Check(ctx context.Context, key string, limit int) error {
	return mapThrottleErr(t.l.Check(ctx, key, limit))
}

func (t throttle) Record(ctx context.Context, key string, limit int, window time.Duration) error {
	return mapThrottleErr(t.l.Record(ctx, key, limit, window))
}

func (t throttle) Reset(ctx context.Context, key string) error {
	return mapThrottleErr(t.l.Reset(ctx, key))
}

func mapThrottleErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited), errors.Is(err, ErrThrottled):
		return ErrThrottled
	case errors.Is(err, ErrUnavailable):
		return err
	default:
		return errors.Join(ErrUnavailable, err)
	}
}
