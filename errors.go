package goAuthz

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for malformed input. More specific validation
	// failures wrap it.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateIdentity is returned by Register when the username or email is
	// already taken.
	ErrDuplicateIdentity = fmt.Errorf("%w: identity already exists", ErrValidation)
	// ErrTwoFactorAlreadyEnabled is returned by Enable2FA for enrolled users.
	ErrTwoFactorAlreadyEnabled = fmt.Errorf("%w: two-factor already enabled", ErrValidation)
	// ErrTwoFactorNotEnabled is returned by Disable2FA and ConfirmEnable2FA when
	// there is nothing to act on.
	ErrTwoFactorNotEnabled = fmt.Errorf("%w: two-factor not enabled", ErrValidation)
	// ErrUnknownPolicy is returned by Authorize for names not configured.
	ErrUnknownPolicy = fmt.Errorf("%w: unknown policy", ErrValidation)
	// ErrUnknownUser is returned by account operations addressed by user id.
	ErrUnknownUser = fmt.Errorf("%w: unknown user", ErrValidation)

	// ErrAuthentication is the single outcome of every failed credential or
	// second-factor check.
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorizationDenied is returned when a policy denies access.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrToken is the single outcome of every rejected token.
	ErrToken = errors.New("invalid token")
	// ErrThrottled is returned when a throttle rejects the attempt.
	ErrThrottled = errors.New("too many attempts")
	// ErrUnavailable is returned when a backing store cannot be reached.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrUserNotFound is returned by CredentialStore lookups. The engine never
	// returns it to callers.
	ErrUserNotFound = errors.New("user not found")
)
