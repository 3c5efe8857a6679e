package goAuthz

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAuthz/internal/flows"
	"github.com/MrEthical07/goAuthz/totp"
)

func (e *Engine) loadUser(ctx context.Context, userID string) (UserRecord, error) {
	rec, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrUnknownUser
		}
		return UserRecord{}, e.backendErr(ctx, "load user", err)
	}
	return rec, nil
}

func totpLabel(rec UserRecord) string {
	if rec.Email != "" {
		return rec.Email
	}
	return rec.Username
}

// Enable2FA generates a TOTP secret for userID and returns it with its
// provisioning URI. By default the secret is enforced immediately; with
// TOTP.RequireConfirmation it stays pending until [Engine.ConfirmEnable2FA].
func (e *Engine) Enable2FA(ctx context.Context, userID string) (TwoFactorEnrollment, error) {
	if !e.ready() {
		return TwoFactorEnrollment{}, ErrEngineNotReady
	}
	rec, err := e.loadUser(ctx, userID)
	if err != nil {
		return TwoFactorEnrollment{}, err
	}
	if rec.TwoFactorEnabled {
		return TwoFactorEnrollment{}, ErrTwoFactorAlreadyEnabled
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return TwoFactorEnrollment{}, err
	}
	out := TwoFactorEnrollment{
		Secret:  secret,
		URI:     totp.ProvisioningURI(totpLabel(rec), secret, e.config.TOTP.Issuer),
		Pending: e.config.TOTP.RequireConfirmation,
	}

	state := TwoFactorState{Enabled: true, Secret: secret}
	if out.Pending {
		state = TwoFactorState{PendingSecret: secret}
	}
	if err := e.credentials.SetTwoFactor(ctx, rec.ID, state); err != nil {
		return TwoFactorEnrollment{}, e.backendErr(ctx, "enable 2fa", err)
	}

	if !out.Pending {
		e.metricInc(MetricTwoFactorEnabled)
	}
	e.emitAudit(ctx, auditEventTwoFactorEnrolled, true, rec.ID, "", func() map[string]string {
		if out.Pending {
			return map[string]string{"state": "pending"}
		}
		return map[string]string{"state": "enabled"}
	})
	return out, nil
}

// ConfirmEnable2FA activates a pending enrollment once the user proves
// possession of the secret. A wrong code is [ErrAuthentication].
func (e *Engine) ConfirmEnable2FA(ctx context.Context, userID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	rec, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if rec.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if rec.PendingTOTPSecret == "" {
		return ErrTwoFactorNotEnabled
	}

	throttle := e.throttlePolicy(
		e.config.Security.EnableTOTPThrottle,
		e.config.Security.MaxTOTPAttempts,
		e.config.Security.TOTPCooldown,
	)
	key := flows.TOTPThrottleKey(rec.ID)
	if throttle.Throttle != nil {
		if err := throttle.Throttle.Check(ctx, key, throttle.MaxAttempts); err != nil {
			e.metricInc(MetricTOTPThrottled)
			return throttleOutcome(err)
		}
	}

	step, ok := totp.Match(rec.PendingTOTPSecret, code, e.now())
	if !ok {
		if throttle.Throttle != nil {
			if err := throttle.Throttle.Record(ctx, key, throttle.MaxAttempts, throttle.Cooldown); err != nil {
				e.warn("goAuthz: throttle record failed", "key", key, "error", err)
			}
		}
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, rec.ID, "totp_invalid", nil)
		return ErrAuthentication
	}
	if e.replayGuard != nil {
		accepted, err := e.replayGuard.Accept(ctx, rec.ID, step)
		if err != nil {
			return e.backendErr(ctx, "confirm 2fa replay", err)
		}
		if !accepted {
			e.metricInc(MetricTOTPReplay)
			e.emitAudit(ctx, auditEventTOTPFailure, false, rec.ID, "totp_replay", nil)
			return ErrAuthentication
		}
	}

	if err := e.credentials.SetTwoFactor(ctx, rec.ID, TwoFactorState{Enabled: true, Secret: rec.PendingTOTPSecret}); err != nil {
		return e.backendErr(ctx, "confirm 2fa", err)
	}
	if throttle.Throttle != nil {
		if err := throttle.Throttle.Reset(ctx, key); err != nil {
			e.warn("goAuthz: throttle reset failed", "key", key, "error", err)
		}
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, auditEventTwoFactorConfirmed, true, rec.ID, "", nil)
	return nil
}

// Disable2FA clears the secret of userID, or a pending enrollment, and marks
// two-factor disabled.
func (e *Engine) Disable2FA(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	rec, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !rec.TwoFactorEnabled && rec.PendingTOTPSecret == "" {
		return ErrTwoFactorNotEnabled
	}

	if err := e.credentials.SetTwoFactor(ctx, rec.ID, TwoFactorState{}); err != nil {
		return e.backendErr(ctx, "disable 2fa", err)
	}
	if e.replayGuard != nil {
		if err := e.replayGuard.Reset(ctx, rec.ID); err != nil {
			e.warn("goAuthz: totp replay reset failed", "user_id", rec.ID, "error", err)
		}
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, rec.ID, "", nil)
	return nil
}
