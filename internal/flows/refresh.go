package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAuthz/refresh"
)

// RefreshFailure classifies refresh failures for root-level mapping.
type RefreshFailure int

const (
	RefreshFailureNone RefreshFailure = iota
	RefreshFailureMalformed
	RefreshFailureThrottled
	RefreshFailureNotFound
	RefreshFailureExpired
	RefreshFailureReuse
	RefreshFailureUnknownUser
	RefreshFailureInactive
	RefreshFailureBackend
	RefreshFailureIssue
)

// Reason returns the audit reason code of f.
func (f RefreshFailure) Reason() string {
	switch f {
	case RefreshFailureNone:
		return ""
	case RefreshFailureMalformed:
		return "malformed"
	case RefreshFailureThrottled:
		return "throttled"
	case RefreshFailureNotFound:
		return "not_found"
	case RefreshFailureExpired:
		return "expired"
	case RefreshFailureReuse:
		return "refresh_reuse"
	case RefreshFailureUnknownUser:
		return "user_not_found"
	case RefreshFailureInactive:
		return "account_inactive"
	case RefreshFailureBackend:
		return "backend_unavailable"
	default:
		return "issue_failed"
	}
}

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailure
	Err     error
	UserID  string
	// FamilyRevoked counts tokens revoked after reuse was detected.
	FamilyRevoked int
	Tokens        Tokens
}

// RefreshDeps captures refresh rotation dependencies.
type RefreshDeps struct {
	Throttle ThrottlePolicy

	Store        refresh.Store
	FindUser     func(ctx context.Context, userID string) (User, error)
	UserNotFound error

	IssueAccess func(user User) (string, time.Time, error)
	TTL         time.Duration
	Now         func() time.Time
	// RevokeFamilyOnReuse revokes every token of the user when a revoked
	// token is presented.
	RevokeFamilyOnReuse bool

	Warn func(msg string, args ...any)
}

// RefreshThrottleKey is the throttle key of a refresh token hash.
func RefreshThrottleKey(hash string) string {
	return "refresh:" + hash
}

// RunRefresh exchanges a refresh token for a new pair. The new access token is
// signed before the old record is touched, and the rotation itself runs on a
// context detached from caller cancellation so an abandoned request cannot
// leave the old token revoked without a successor.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) RefreshResult {
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	hash, err := refresh.HashToken(token)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureMalformed}
	}

	key := RefreshThrottleKey(hash)
	if err := deps.Throttle.check(ctx, key); err != nil {
		return RefreshResult{Failure: RefreshFailureThrottled, Err: err}
	}

	now := deps.Now()
	rec, err := deps.Store.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) || errors.Is(err, refresh.ErrCorrupt) {
			deps.Throttle.record(ctx, key, deps.Warn)
			return RefreshResult{Failure: RefreshFailureNotFound}
		}
		return RefreshResult{Failure: RefreshFailureBackend, Err: err}
	}
	if rec.Revoked {
		deps.Throttle.record(ctx, key, deps.Warn)
		return reuseDetected(ctx, rec.UserID, deps)
	}
	if !now.Before(rec.ExpiresAt) {
		deps.Throttle.record(ctx, key, deps.Warn)
		return RefreshResult{Failure: RefreshFailureExpired, UserID: rec.UserID}
	}

	user, err := deps.FindUser(ctx, rec.UserID)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return RefreshResult{Failure: RefreshFailureUnknownUser, UserID: rec.UserID}
		}
		return RefreshResult{Failure: RefreshFailureBackend, Err: err, UserID: rec.UserID}
	}
	if !user.Active {
		return RefreshResult{Failure: RefreshFailureInactive, UserID: user.ID}
	}

	access, accessExp, err := deps.IssueAccess(user)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: user.ID}
	}
	nextToken, nextHash, err := refresh.NewToken()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: user.ID}
	}
	next := refresh.Record{
		TokenHash: nextHash,
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(deps.TTL),
	}

	err = deps.Store.Rotate(context.WithoutCancel(ctx), hash, next, refresh.ReasonRefreshed, now)
	switch {
	case err == nil:
	case errors.Is(err, refresh.ErrRevoked):
		// Lost a concurrent rotation or replayed a rotated token.
		return reuseDetected(ctx, user.ID, deps)
	case errors.Is(err, refresh.ErrExpired):
		return RefreshResult{Failure: RefreshFailureExpired, UserID: user.ID}
	case errors.Is(err, refresh.ErrNotFound), errors.Is(err, refresh.ErrCorrupt):
		return RefreshResult{Failure: RefreshFailureNotFound, UserID: user.ID}
	default:
		return RefreshResult{Failure: RefreshFailureBackend, Err: err, UserID: user.ID}
	}

	deps.Throttle.reset(ctx, key, deps.Warn)

	return RefreshResult{
		UserID: user.ID,
		Tokens: Tokens{
			AccessToken:     access,
			RefreshToken:    nextToken,
			AccessExpiresAt: accessExp,
		},
	}
}

func reuseDetected(ctx context.Context, userID string, deps RefreshDeps) RefreshResult {
	res := RefreshResult{Failure: RefreshFailureReuse, UserID: userID}
	if !deps.RevokeFamilyOnReuse || userID == "" {
		return res
	}
	n, err := deps.Store.RevokeAllForUser(context.WithoutCancel(ctx), userID, refresh.ReasonReuse)
	if err != nil {
		deps.Warn("goAuthz: refresh family revocation failed", "user_id", userID, "error", err)
	}
	res.FamilyRevoked = n
	return res
}
