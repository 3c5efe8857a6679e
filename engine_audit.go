package goAuthz

import (
	"context"
)

const (
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterFailure      = "register_failure"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginThrottled       = "login_throttled"
	auditEventTwoFactorRequired    = "two_factor_required"
	auditEventTOTPSuccess          = "totp_success"
	auditEventTOTPFailure          = "totp_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshFailure       = "refresh_failure"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventTwoFactorEnrolled    = "two_factor_enrolled"
	auditEventTwoFactorConfirmed   = "two_factor_confirmed"
	auditEventTwoFactorDisabled    = "two_factor_disabled"
	auditEventLogout               = "logout"
	auditEventLogoutAll            = "logout_all"
	auditEventPolicyDenied         = "policy_denied"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	reason string,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	// The dispatcher stamps the time and client IP.
	e.audit.Emit(ctx, AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		Reason:    reason,
		Metadata:  metadata,
	})
}
