package flows

import (
	"context"
	"errors"
	"strings"
	"time"
)

// LoginFailure classifies login failures for root-level mapping.
type LoginFailure int

const (
	LoginFailureNone LoginFailure = iota
	LoginFailureThrottled
	LoginFailureUnknownUser
	LoginFailurePassword
	LoginFailureInactive
	LoginFailureBackend
	LoginFailureIssue
)

// Reason returns the audit reason code of f.
func (f LoginFailure) Reason() string {
	switch f {
	case LoginFailureNone:
		return ""
	case LoginFailureThrottled:
		return "throttled"
	case LoginFailureUnknownUser:
		return "user_not_found"
	case LoginFailurePassword:
		return "password_mismatch"
	case LoginFailureInactive:
		return "account_inactive"
	case LoginFailureBackend:
		return "backend_unavailable"
	default:
		return "issue_failed"
	}
}

// LoginResult carries either issued tokens, a second-factor challenge or a
// failure kind.
type LoginResult struct {
	Failure LoginFailure
	Err     error
	UserID  string

	TwoFactorRequired bool
	TempToken         string
	TempExpiresAt     time.Time

	Tokens Tokens
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Throttle ThrottlePolicy

	FindUser     func(ctx context.Context, username string) (User, error)
	UserNotFound error

	VerifyPassword func(password, encodedHash string) (bool, error)
	// VerifyDummy spends the cost of one verification for unknown users.
	VerifyDummy func(password string)

	IssueTemp       func(userID string) (string, time.Time, error)
	IssueTokens     func(ctx context.Context, user User) (Tokens, error)
	UpdateLastLogin func(ctx context.Context, userID string) error

	Warn func(msg string, args ...any)
}

// LoginThrottleKey is the throttle key of a username.
func LoginThrottleKey(username string) string {
	return "login:" + strings.ToLower(strings.TrimSpace(username))
}

// RunLogin checks credentials. Users with an enrolled second factor receive
// only a temporary token; everyone else receives an access and refresh pair.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	key := LoginThrottleKey(username)

	if err := deps.Throttle.check(ctx, key); err != nil {
		return LoginResult{Failure: LoginFailureThrottled, Err: err}
	}

	user, err := deps.FindUser(ctx, username)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			if deps.VerifyDummy != nil {
				deps.VerifyDummy(password)
			}
			deps.Throttle.record(ctx, key, deps.Warn)
			return LoginResult{Failure: LoginFailureUnknownUser}
		}
		return LoginResult{Failure: LoginFailureBackend, Err: err}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		deps.Throttle.record(ctx, key, deps.Warn)
		return LoginResult{Failure: LoginFailurePassword, Err: err, UserID: user.ID}
	}
	if !user.Active {
		deps.Throttle.record(ctx, key, deps.Warn)
		return LoginResult{Failure: LoginFailureInactive, UserID: user.ID}
	}

	deps.Throttle.reset(ctx, key, deps.Warn)

	if user.TwoFactorEnabled && user.TOTPSecret != "" {
		temp, exp, err := deps.IssueTemp(user.ID)
		if err != nil {
			return LoginResult{Failure: LoginFailureIssue, Err: err, UserID: user.ID}
		}
		return LoginResult{
			UserID:            user.ID,
			TwoFactorRequired: true,
			TempToken:         temp,
			TempExpiresAt:     exp,
		}
	}

	tokens, err := deps.IssueTokens(ctx, user)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, UserID: user.ID}
	}
	if deps.UpdateLastLogin != nil {
		if err := deps.UpdateLastLogin(ctx, user.ID); err != nil {
			deps.Warn("goAuthz: last login update failed", "user_id", user.ID, "error", err)
		}
	}

	return LoginResult{UserID: user.ID, Tokens: tokens}
}
