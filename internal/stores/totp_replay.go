package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrReplayBackend wraps Redis failures of the replay guard.
var ErrReplayBackend = errors.New("totp replay backend unavailable")

// acceptStepScript stores ARGV[1] when it is greater than the stored step.
// Returns 1 when accepted, 0 when the step was already used.
const acceptStepScript = `
local last = tonumber(redis.call("GET", KEYS[1]) or "-1")
local step = tonumber(ARGV[1])
if step <= last then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`

var acceptStepLua = redis.NewScript(acceptStepScript)

// releaseStepScript lowers the stored step to ARGV[1]-1 when it still equals
// ARGV[1]. Every step below the released one stays rejected.
const releaseStepScript = `
local last = redis.call("GET", KEYS[1])
if not last or tonumber(last) ~= tonumber(ARGV[1]) then
  return 0
end
redis.call("SET", KEYS[1], tostring(tonumber(ARGV[1]) - 1), "KEEPTTL")
return 1
`

var releaseStepLua = redis.NewScript(releaseStepScript)

// TOTPReplayGuard rejects reuse of an accepted TOTP time step.
type TOTPReplayGuard struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewTOTPReplayGuard returns a guard writing keys under prefix. ttl must cover
// the validity window of a code; zero selects two minutes.
func NewTOTPReplayGuard(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *TOTPReplayGuard {
	if prefix == "" {
		prefix = "goauthz"
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &TOTPReplayGuard{redis: redisClient, prefix: prefix, ttl: ttl}
}

func (g *TOTPReplayGuard) key(userID string) string {
	return g.prefix + ":totp:last:" + userID
}

// Accept records step for userID. It reports false when step is not newer
// than the last accepted one.
func (g *TOTPReplayGuard) Accept(ctx context.Context, userID string, step int64) (bool, error) {
	res, err := acceptStepLua.Run(ctx, g.redis, []string{g.key(userID)}, step, g.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrReplayBackend, err)
	}
	return res == 1, nil
}

// Release hands step back after an accepted code could not be used, so the
// same code works on retry. A newer step accepted meanwhile is left alone.
func (g *TOTPReplayGuard) Release(ctx context.Context, userID string, step int64) error {
	if err := releaseStepLua.Run(ctx, g.redis, []string{g.key(userID)}, step).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrReplayBackend, err)
	}
	return nil
}

// Reset forgets the last accepted step of userID.
func (g *TOTPReplayGuard) Reset(ctx context.Context, userID string) error {
	if err := g.redis.Del(ctx, g.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrReplayBackend, err)
	}
	return nil
}
