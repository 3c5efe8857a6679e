package flows

import (
	"context"
	"errors"
	"time"
)

// TwoFactorFailure classifies second-factor failures for root-level mapping.
type TwoFactorFailure int

const (
	TwoFactorFailureNone TwoFactorFailure = iota
	TwoFactorFailureTempToken
	TwoFactorFailureUnknownUser
	TwoFactorFailureInactive
	TwoFactorFailureNotEnrolled
	TwoFactorFailureThrottled
	TwoFactorFailureCode
	TwoFactorFailureReplay
	TwoFactorFailureBackend
	TwoFactorFailureIssue
)

// Reason returns the audit reason code of f.
func (f TwoFactorFailure) Reason() string {
	switch f {
	case TwoFactorFailureNone:
		return ""
	case TwoFactorFailureTempToken:
		return "temp_token_invalid"
	case TwoFactorFailureUnknownUser:
		return "user_not_found"
	case TwoFactorFailureInactive:
		return "account_inactive"
	case TwoFactorFailureNotEnrolled:
		return "totp_not_enabled"
	case TwoFactorFailureThrottled:
		return "throttled"
	case TwoFactorFailureCode:
		return "totp_invalid"
	case TwoFactorFailureReplay:
		return "totp_replay"
	case TwoFactorFailureBackend:
		return "backend_unavailable"
	default:
		return "issue_failed"
	}
}

// TwoFactorResult carries either issued tokens or a failure kind.
type TwoFactorResult struct {
	Failure TwoFactorFailure
	Err     error
	UserID  string
	Step    int64
	Tokens  Tokens
}

// TwoFactorDeps captures second-factor verification dependencies.
type TwoFactorDeps struct {
	Throttle ThrottlePolicy

	ParseTemp    func(token string) (string, error)
	FindUser     func(ctx context.Context, userID string) (User, error)
	UserNotFound error

	// MatchCode reports the time step a code matched.
	MatchCode func(secret, code string, now time.Time) (int64, bool)
	Now       func() time.Time
	// AcceptStep records a matched step; nil disables replay protection.
	AcceptStep func(ctx context.Context, userID string, step int64) (bool, error)
	// ReleaseStep undoes AcceptStep when tokens could not be issued.
	ReleaseStep func(ctx context.Context, userID string, step int64) error

	IssueTokens     func(ctx context.Context, user User) (Tokens, error)
	UpdateLastLogin func(ctx context.Context, userID string) error

	Warn func(msg string, args ...any)
}

// TOTPThrottleKey is the throttle key of a user's second-factor attempts.
func TOTPThrottleKey(userID string) string {
	return "totp:" + userID
}

// RunVerifyTwoFactor exchanges a temporary token and a TOTP code for an
// access and refresh pair. Nothing is issued unless every check passes.
func RunVerifyTwoFactor(ctx context.Context, tempToken, code string, deps TwoFactorDeps) TwoFactorResult {
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	userID, err := deps.ParseTemp(tempToken)
	if err != nil {
		return TwoFactorResult{Failure: TwoFactorFailureTempToken}
	}

	user, err := deps.FindUser(ctx, userID)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return TwoFactorResult{Failure: TwoFactorFailureUnknownUser, UserID: userID}
		}
		return TwoFactorResult{Failure: TwoFactorFailureBackend, Err: err, UserID: userID}
	}
	if !user.Active {
		return TwoFactorResult{Failure: TwoFactorFailureInactive, UserID: user.ID}
	}
	if !user.TwoFactorEnabled || user.TOTPSecret == "" {
		return TwoFactorResult{Failure: TwoFactorFailureNotEnrolled, UserID: user.ID}
	}

	key := TOTPThrottleKey(user.ID)
	if err := deps.Throttle.check(ctx, key); err != nil {
		return TwoFactorResult{Failure: TwoFactorFailureThrottled, Err: err, UserID: user.ID}
	}

	step, ok := deps.MatchCode(user.TOTPSecret, code, deps.Now())
	if !ok {
		deps.Throttle.record(ctx, key, deps.Warn)
		return TwoFactorResult{Failure: TwoFactorFailureCode, UserID: user.ID}
	}

	if deps.AcceptStep != nil {
		accepted, err := deps.AcceptStep(ctx, user.ID, step)
		if err != nil {
			return TwoFactorResult{Failure: TwoFactorFailureBackend, Err: err, UserID: user.ID, Step: step}
		}
		if !accepted {
			deps.Throttle.record(ctx, key, deps.Warn)
			return TwoFactorResult{Failure: TwoFactorFailureReplay, UserID: user.ID, Step: step}
		}
	}

	deps.Throttle.reset(ctx, key, deps.Warn)

	tokens, err := deps.IssueTokens(ctx, user)
	if err != nil {
		if deps.AcceptStep != nil && deps.ReleaseStep != nil {
			if relErr := deps.ReleaseStep(context.WithoutCancel(ctx), user.ID, step); relErr != nil {
				deps.Warn("goAuthz: totp step release failed", "user_id", user.ID, "error", relErr)
			}
		}
		return TwoFactorResult{Failure: TwoFactorFailureIssue, Err: err, UserID: user.ID, Step: step}
	}
	if deps.UpdateLastLogin != nil {
		if err := deps.UpdateLastLogin(ctx, user.ID); err != nil {
			deps.Warn("goAuthz: last login update failed", "user_id", user.ID, "error", err)
		}
	}

	return TwoFactorResult{UserID: user.ID, Step: step, Tokens: tokens}
}
