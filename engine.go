package goAuthz

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAuthz/claims"
	"github.com/MrEthical07/goAuthz/internal/audit"
	"github.com/MrEthical07/goAuthz/internal/flows"
	"github.com/MrEthical07/goAuthz/internal/stores"
	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/password"
	"github.com/MrEthical07/goAuthz/policy"
	"github.com/MrEthical07/goAuthz/refresh"
)

// Engine orchestrates registration, login, second factor, token rotation and
// policy decisions. Build it with [New]; all methods are safe for concurrent
// use.
type Engine struct {
	config       Config
	credentials  CredentialStore
	resources    ResourceStore
	hasher       password.Hasher
	tokens       *jwt.Manager
	refreshStore refresh.Store
	replayGuard  *stores.TOTPReplayGuard
	throttle     Throttle
	evaluator    *policy.Evaluator
	policies     *policy.Set
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
}

// Close stops the audit dispatcher after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counter and histogram values. With
// metrics disabled every value is zero.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Policies returns the names of the configured policies.
func (e *Engine) Policies() []string {
	if e == nil || e.policies == nil {
		return nil
	}
	return e.policies.Names()
}

func (e *Engine) ready() bool {
	return e != nil && e.tokens != nil && e.credentials != nil
}

func (e *Engine) now() time.Time {
	return e.config.now()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}

// backendErr logs cause and returns the public outage error.
func (e *Engine) backendErr(ctx context.Context, op string, cause error) error {
	e.logger.ErrorContext(ctx, "goAuthz: backend failure", "op", op, "error", cause)
	return ErrUnavailable
}

func throttleOutcome(err error) error {
	if errors.Is(err, ErrThrottled) {
		return ErrThrottled
	}
	return ErrUnavailable
}

func (e *Engine) throttlePolicy(enabled bool, max int, cooldown time.Duration) flows.ThrottlePolicy {
	if !enabled || e.throttle == nil {
		return flows.ThrottlePolicy{}
	}
	return flows.ThrottlePolicy{Throttle: e.throttle, MaxAttempts: max, Cooldown: cooldown}
}

func (e *Engine) findByUsername(ctx context.Context, username string) (flows.User, error) {
	rec, err := e.credentials.FindByUsername(ctx, username)
	if err != nil {
		return flows.User{}, err
	}
	return toFlowUser(rec), nil
}

func (e *Engine) findByID(ctx context.Context, userID string) (flows.User, error) {
	rec, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		return flows.User{}, err
	}
	return toFlowUser(rec), nil
}

func toFlowUser(rec UserRecord) flows.User {
	return flows.User{
		ID:               rec.ID,
		Username:         rec.Username,
		Email:            rec.Email,
		PasswordHash:     rec.PasswordHash,
		Roles:            append([]string(nil), rec.Roles...),
		Department:       rec.Department,
		DateOfBirth:      rec.DateOfBirth,
		Active:           rec.Active,
		TwoFactorEnabled: rec.TwoFactorEnabled,
		TOTPSecret:       rec.TOTPSecret,
	}
}

// accessClaims is the claim snapshot embedded in access tokens.
func accessClaims(u flows.User) claims.Principal {
	var p claims.Principal
	p.Add(claims.Username, u.Username)
	p.Add(claims.Email, u.Email)
	p.Add(claims.Department, u.Department)
	p.Add(claims.DateOfBirth, u.DateOfBirth)
	return p
}

func (e *Engine) issueAccess(u flows.User) (string, time.Time, error) {
	return e.tokens.IssueAccess(u.ID, u.Roles, accessClaims(u))
}

// issueTokens signs an access token and stores a fresh refresh token.
func (e *Engine) issueTokens(ctx context.Context, u flows.User) (flows.Tokens, error) {
	access, exp, err := e.issueAccess(u)
	if err != nil {
		return flows.Tokens{}, err
	}
	token, hash, err := refresh.NewToken()
	if err != nil {
		return flows.Tokens{}, err
	}
	now := e.now()
	rec := refresh.Record{
		TokenHash: hash,
		UserID:    u.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(e.config.Refresh.TTL),
	}
	if err := e.refreshStore.Save(ctx, rec, now); err != nil {
		return flows.Tokens{}, err
	}
	return flows.Tokens{AccessToken: access, RefreshToken: token, AccessExpiresAt: exp}, nil
}

func (e *Engine) updateLastLogin(ctx context.Context, userID string) error {
	return e.credentials.UpdateLastLogin(ctx, userID, e.now())
}

func (e *Engine) verifyDummy(password string) {
	if d, ok := e.hasher.(interface{ VerifyDummy(string) }); ok {
		d.VerifyDummy(password)
	}
}

func (e *Engine) acceptStep() func(context.Context, string, int64) (bool, error) {
	if e.replayGuard == nil {
		return nil
	}
	return e.replayGuard.Accept
}

func (e *Engine) releaseStep() func(context.Context, string, int64) error {
	if e.replayGuard == nil {
		return nil
	}
	return e.replayGuard.Release
}
