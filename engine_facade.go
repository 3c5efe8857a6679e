package goAuthz

import (
	"fmt"

	"github.com/MrEthical07/goAuthz/claims"
	"github.com/MrEthical07/goAuthz/totp"
)

// IssueAccessToken signs an access token for subjectID outside of the login
// flow, e.g. for service principals. Reserved claim types in extra fail.
func (e *Engine) IssueAccessToken(subjectID string, roles []string, extra claims.Principal) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if subjectID == "" {
		return "", ErrValidation
	}
	tok, _, err := e.tokens.IssueAccess(subjectID, roles, extra)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return tok, nil
}

// ValidateToken verifies an access token and returns its claims. Every
// rejection is [ErrToken].
func (e *Engine) ValidateToken(accessToken string) (claims.Principal, error) {
	if !e.ready() {
		return claims.Principal{}, ErrEngineNotReady
	}
	p, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		e.logger.Debug("goAuthz: access token rejected", "error", err)
		return claims.Principal{}, ErrToken
	}
	return p, nil
}

// GenerateTotpSecret returns a fresh Base32 TOTP secret.
func (e *Engine) GenerateTotpSecret() (string, error) {
	return totp.GenerateSecret()
}

// ProvisioningURI builds an otpauth URI for label. The issuer is bound to
// TOTP.Issuer so every URI an engine hands out names the same service; use
// [totp.ProvisioningURI] to pass an issuer explicitly.
func (e *Engine) ProvisioningURI(label, secret string) string {
	issuer := "goAuthz"
	if e != nil && e.config.TOTP.Issuer != "" {
		issuer = e.config.TOTP.Issuer
	}
	return totp.ProvisioningURI(label, secret, issuer)
}

// ValidateTotpCode reports whether code is valid for secret at the engine
// clock (Config.Now), within one step of drift. It does not consult the replay
// guard. [totp.Validate] takes the instant explicitly.
func (e *Engine) ValidateTotpCode(secret, code string) bool {
	if e == nil {
		return false
	}
	return totp.Validate(secret, code, e.now())
}
