package goAuthz

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const dateOfBirthLayout = "2006-01-02"

// Register validates req, hashes the password and creates an active account
// holding the default role. It returns the new user id. A username or email
// already in use, compared case-insensitively, is [ErrDuplicateIdentity].
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if err := e.validateRegistration(username, email, req); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "validation", nil)
		return "", err
	}

	exists, err := e.credentials.IdentityExists(ctx, username, email)
	if err != nil {
		return "", e.backendErr(ctx, "register lookup", err)
	}
	if exists {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "duplicate", func() map[string]string {
			return map[string]string{"identifier": username}
		})
		return "", ErrDuplicateIdentity
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	id := uuid.NewString()
	err = e.credentials.CreateUser(ctx, NewUser{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{e.config.Account.DefaultRole},
		Department:   strings.TrimSpace(req.Department),
		DateOfBirth:  strings.TrimSpace(req.DateOfBirth),
		CreatedAt:    e.now().UTC(),
	})
	if err != nil {
		// A concurrent registration can win between the check and the insert.
		if errors.Is(err, ErrDuplicateIdentity) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", "duplicate", nil)
			return "", ErrDuplicateIdentity
		}
		return "", e.backendErr(ctx, "register create", err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, id, "", nil)
	return id, nil
}

func (e *Engine) validateRegistration(username, email string, req RegisterRequest) error {
	n := len([]rune(username))
	if n < e.config.Account.MinUsernameLength || n > e.config.Account.MaxUsernameLength {
		return fmt.Errorf("%w: username must be %d to %d characters", ErrValidation,
			e.config.Account.MinUsernameLength, e.config.Account.MaxUsernameLength)
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: username must not contain whitespace", ErrValidation)
		}
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}

	if err := e.hasher.Check(req.Password); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if dob := strings.TrimSpace(req.DateOfBirth); dob != "" {
		t, err := time.Parse(dateOfBirthLayout, dob)
		if err != nil {
			return fmt.Errorf("%w: date of birth must be YYYY-MM-DD", ErrValidation)
		}
		if t.After(e.now()) {
			return fmt.Errorf("%w: date of birth is in the future", ErrValidation)
		}
	}
	return nil
}
