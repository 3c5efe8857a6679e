package rate

import "errors"

var (
	// ErrRateLimited is returned once a key reached its limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
