package goAuthz

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goAuthz/internal/flows"
	"github.com/MrEthical07/goAuthz/refresh"
)

// Refresh rotates a refresh token: the presented token is revoked with reason
// "Refreshed" and a new access and refresh pair is returned. Of concurrent
// calls with the same token exactly one succeeds; the rest get [ErrToken].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	if !e.ready() {
		return LoginResult{}, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		Throttle: e.throttlePolicy(
			e.config.Security.EnableRefreshThrottle,
			e.config.Security.MaxRefreshAttempts,
			e.config.Security.RefreshCooldown,
		),
		Store:               e.refreshStore,
		FindUser:            e.findByID,
		UserNotFound:        ErrUserNotFound,
		IssueAccess:         e.issueAccess,
		TTL:                 e.config.Refresh.TTL,
		Now:                 e.now,
		RevokeFamilyOnReuse: e.config.Refresh.RevokeFamilyOnReuse,
		Warn:                e.warn,
	})

	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureThrottled:
		e.metricInc(MetricRefreshThrottled)
		e.emitAudit(ctx, auditEventRefreshFailure, false, res.UserID, res.Failure.Reason(), nil)
		return LoginResult{}, throttleOutcome(res.Err)
	case flows.RefreshFailureBackend, flows.RefreshFailureIssue:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, res.UserID, res.Failure.Reason(), nil)
		return LoginResult{}, e.backendErr(ctx, "refresh", res.Err)
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.UserID, res.Failure.Reason(), nil)
		return LoginResult{}, ErrToken
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, res.UserID, res.Failure.Reason(), nil)
		return LoginResult{}, ErrToken
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, "", nil)
	return LoginResult{
		AccessToken:     res.Tokens.AccessToken,
		RefreshToken:    res.Tokens.RefreshToken,
		AccessExpiresAt: res.Tokens.AccessExpiresAt,
	}, nil
}

// ValidateRefreshToken reports the owner of a live refresh token without
// consuming it.
func (e *Engine) ValidateRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	hash, err := refresh.HashToken(refreshToken)
	if err != nil {
		return "", ErrToken
	}
	rec, err := e.refreshStore.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) || errors.Is(err, refresh.ErrCorrupt) {
			return "", ErrToken
		}
		return "", e.backendErr(ctx, "validate refresh", err)
	}
	if !rec.Active(e.now()) {
		return "", ErrToken
	}
	return rec.UserID, nil
}

// Logout revokes one refresh token. Unknown or already revoked tokens are
// not an error; malformed ones are [ErrToken].
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	hash, err := refresh.HashToken(refreshToken)
	if err != nil {
		return ErrToken
	}
	rec, getErr := e.refreshStore.Get(ctx, hash)
	revoked, err := e.refreshStore.Revoke(ctx, hash, refresh.ReasonLogout)
	if err != nil {
		return e.backendErr(ctx, "logout", err)
	}
	if revoked {
		var userID string
		if getErr == nil {
			userID = rec.UserID
		}
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, userID, "", nil)
	}
	return nil
}

// LogoutAll revokes every refresh token of userID and returns how many were
// live.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, ErrUnknownUser
	}
	n, err := e.refreshStore.RevokeAllForUser(ctx, userID, refresh.ReasonLogoutAll)
	if err != nil {
		return n, e.backendErr(ctx, "logout all", err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
	return n, nil
}
