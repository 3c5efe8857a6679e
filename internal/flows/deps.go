package flows

import (
	"context"
	"time"
)

// User is the flow-local view of an account.
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	Roles            []string
	Department       string
	DateOfBirth      string
	Active           bool
	TwoFactorEnabled bool
	TOTPSecret       string
}

// Tokens is an issued access and refresh pair.
type Tokens struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// Throttle counts failed attempts per key. Check fails once a key is over
// its limit; the error is passed through to the engine unchanged.
type Throttle interface {
	Check(ctx context.Context, key string, limit int) error
	Record(ctx context.Context, key string, limit int, window time.Duration) error
	Reset(ctx context.Context, key string) error
}

// ThrottlePolicy binds a throttle to one limit. A nil Throttle disables it.
type ThrottlePolicy struct {
	Throttle    Throttle
	MaxAttempts int
	Cooldown    time.Duration
}

func (p ThrottlePolicy) check(ctx context.Context, key string) error {
	if p.Throttle == nil {
		return nil
	}
	return p.Throttle.Check(ctx, key, p.MaxAttempts)
}

func (p ThrottlePolicy) record(ctx context.Context, key string, warn func(string, ...any)) {
	if p.Throttle == nil {
		return
	}
	// Going over the limit here only affects the next attempt.
	if err := p.Throttle.Record(ctx, key, p.MaxAttempts, p.Cooldown); err != nil {
		warn("goAuthz: throttle record failed", "key", key, "error", err)
	}
}

func (p ThrottlePolicy) reset(ctx context.Context, key string, warn func(string, ...any)) {
	if p.Throttle == nil {
		return
	}
	if err := p.Throttle.Reset(ctx, key); err != nil {
		warn("goAuthz: throttle reset failed", "key", key, "error", err)
	}
}

func noWarn(string, ...any) {}
