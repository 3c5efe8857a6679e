package goAuthz

import (
	"context"

	"github.com/MrEthical07/goAuthz/internal/flows"
	"github.com/MrEthical07/goAuthz/totp"
)

// Login checks a username and password. Users with two-factor enabled get
// only a temporary token, to be exchanged through [Engine.Verify2FA]. Every
// credential failure is [ErrAuthentication].
func (e *Engine) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if !e.ready() {
		return LoginResult{}, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, username, password, flows.LoginDeps{
		Throttle: e.throttlePolicy(
			e.config.Security.EnableLoginThrottle,
			e.config.Security.MaxLoginAttempts,
			e.config.Security.LoginCooldown,
		),
		FindUser:        e.findByUsername,
		UserNotFound:    ErrUserNotFound,
		VerifyPassword:  e.hasher.Verify,
		VerifyDummy:     e.verifyDummy,
		IssueTemp:       e.tokens.IssueTemp,
		IssueTokens:     e.issueTokens,
		UpdateLastLogin: e.updateLastLogin,
		Warn:            e.warn,
	})

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureThrottled:
		e.metricInc(MetricLoginThrottled)
		e.emitAudit(ctx, auditEventLoginThrottled, false, "", res.Failure.Reason(), func() map[string]string {
			return map[string]string{"identifier": username}
		})
		return LoginResult{}, throttleOutcome(res.Err)
	case flows.LoginFailureBackend:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", res.Failure.Reason(), nil)
		return LoginResult{}, e.backendErr(ctx, "login", res.Err)
	case flows.LoginFailureIssue:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, res.Failure.Reason(), nil)
		return LoginResult{}, e.backendErr(ctx, "login issue", res.Err)
	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, res.Failure.Reason(), func() map[string]string {
			return map[string]string{"identifier": username}
		})
		return LoginResult{}, ErrAuthentication
	}

	if res.TwoFactorRequired {
		e.metricInc(MetricTwoFactorRequired)
		e.emitAudit(ctx, auditEventTwoFactorRequired, true, res.UserID, "", nil)
		return LoginResult{TwoFactorRequired: true, TempToken: res.TempToken}, nil
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.UserID, "", nil)
	return LoginResult{
		AccessToken:     res.Tokens.AccessToken,
		RefreshToken:    res.Tokens.RefreshToken,
		AccessExpiresAt: res.Tokens.AccessExpiresAt,
	}, nil
}

// Verify2FA exchanges a temporary token and the current TOTP code for an
// access and refresh pair. Every failure is [ErrAuthentication] unless the
// attempt was throttled or a backend failed; nothing is issued on failure.
func (e *Engine) Verify2FA(ctx context.Context, tempToken, code string) (LoginResult, error) {
	if !e.ready() {
		return LoginResult{}, ErrEngineNotReady
	}

	res := flows.RunVerifyTwoFactor(ctx, tempToken, code, flows.TwoFactorDeps{
		Throttle: e.throttlePolicy(
			e.config.Security.EnableTOTPThrottle,
			e.config.Security.MaxTOTPAttempts,
			e.config.Security.TOTPCooldown,
		),
		ParseTemp:       e.tokens.ParseTemp,
		FindUser:        e.findByID,
		UserNotFound:    ErrUserNotFound,
		MatchCode:       totp.Match,
		Now:             e.now,
		AcceptStep:      e.acceptStep(),
		ReleaseStep:     e.releaseStep(),
		IssueTokens:     e.issueTokens,
		UpdateLastLogin: e.updateLastLogin,
		Warn:            e.warn,
	})

	switch res.Failure {
	case flows.TwoFactorFailureNone:
	case flows.TwoFactorFailureThrottled:
		e.metricInc(MetricTOTPThrottled)
		e.emitAudit(ctx, auditEventTOTPFailure, false, res.UserID, res.Failure.Reason(), nil)
		return LoginResult{}, throttleOutcome(res.Err)
	case flows.TwoFactorFailureBackend, flows.TwoFactorFailureIssue:
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, res.UserID, res.Failure.Reason(), nil)
		return LoginResult{}, e.backendErr(ctx, "verify 2fa", res.Err)
	case flows.TwoFactorFailureReplay:
		e.metricInc(MetricTOTPReplay)
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, res.UserID, res.Failure.Reason(), nil)
		return LoginResult{}, ErrAuthentication
	default:
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, res.UserID, res.Failure.Reason(), nil)
		return LoginResult{}, ErrAuthentication
	}

	e.metricInc(MetricTOTPSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventTOTPSuccess, true, res.UserID, "", nil)
	return LoginResult{
		AccessToken:     res.Tokens.AccessToken,
		RefreshToken:    res.Tokens.RefreshToken,
		AccessExpiresAt: res.Tokens.AccessExpiresAt,
	}, nil
}
