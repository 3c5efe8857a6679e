package policy

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthz/claims"
)

const (
	roleAdmin   = "Admin"
	roleManager = "Manager"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006"}

// Evaluator decides policies. It holds no mutable state and is safe for
// concurrent use.
type Evaluator struct {
	permissions PermissionSource
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
}

// Option configures an [Evaluator].
type Option func(*Evaluator)

// WithClock overrides the time source used by MinimumAge and TimeWindow.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the zone in which TimeWindow and MinimumAge read the
// clock. The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithLogger routes denial diagnostics to l at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator returns an evaluator reading grants from permissions, which may
// be nil if no policy uses [Permission].
func NewEvaluator(permissions PermissionSource, opts ...Option) *Evaluator {
	e := &Evaluator{
		permissions: permissions,
		now:         time.Now,
		location:    time.Local,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides p for actx. It never returns an error: every failure to
// resolve an input is a denial.
func (e *Evaluator) Evaluate(ctx context.Context, p Policy, actx AuthorizationContext) Decision {
	if p.IsRolePolicy() {
		for _, role := range p.roles {
			if actx.Principal.HasRole(role) {
				return Allow
			}
		}
		e.deny(ctx, p, "role", "no matching role")
		return Deny
	}

	if len(p.requirements) == 0 {
		e.deny(ctx, p, "policy", "empty policy")
		return Deny
	}
	for _, r := range p.requirements {
		if !e.Satisfied(ctx, r, actx) {
			e.deny(ctx, p, "requirement", r.String())
			return Deny
		}
	}
	return Allow
}

// Satisfied reports whether a single requirement holds for actx.
func (e *Evaluator) Satisfied(ctx context.Context, r Requirement, actx AuthorizationContext) bool {
	principal := actx.Principal

	switch req := r.(type) {
	case MinimumAge:
		return e.ageOf(principal) >= req.Years

	case Department:
		dept, ok := principal.First(claims.Department)
		return ok && strings.EqualFold(dept, req.Name)

	case ClaimEquals:
		return req.Type != "" && principal.Has(req.Type, req.Value)

	case TimeWindow:
		now := e.now().In(e.location)
		tod := time.Duration(now.Hour())*time.Hour +
			time.Duration(now.Minute())*time.Minute +
			time.Duration(now.Second())*time.Second +
			time.Duration(now.Nanosecond())
		return req.contains(tod, now.Weekday())

	case ResourceOwnership:
		res := actx.Resource
		if res == nil {
			return false
		}
		if id := principal.ID(); id != "" && res.OwnerID == id {
			return true
		}
		if principal.HasRole(roleAdmin) {
			return true
		}
		if principal.HasRole(roleManager) {
			dept, ok := principal.First(claims.Department)
			return ok && res.Department != "" && strings.EqualFold(dept, res.Department)
		}
		return false

	case Permission:
		return e.granted(ctx, principal, req.Name)

	default:
		return false
	}
}

// ageOf returns the principal's age in whole years, or -1 when unknown.
func (e *Evaluator) ageOf(p claims.Principal) int {
	raw, ok := p.First(claims.DateOfBirth)
	if !ok {
		return -1
	}
	dob, ok := parseDate(strings.TrimSpace(raw), e.location)
	if !ok {
		return -1
	}
	now := e.now().In(e.location)
	if dob.After(now) {
		return -1
	}

	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func (e *Evaluator) granted(ctx context.Context, p claims.Principal, name string) bool {
	if e.permissions == nil || name == "" {
		return false
	}
	roles := p.Roles()
	if len(roles) == 0 {
		return false
	}
	perms, err := e.permissions.PermissionsForRoles(ctx, roles)
	if err != nil {
		e.logger.WarnContext(ctx, "goAuthz: permission lookup failed", "permission", name, "error", err)
		return false
	}
	for _, perm := range perms {
		if strings.EqualFold(perm, name) {
			return true
		}
	}
	return false
}

func (e *Evaluator) deny(ctx context.Context, p Policy, kind, detail string) {
	e.logger.DebugContext(ctx, "goAuthz: policy denied",
		"policy", p.name,
		"kind", kind,
		"detail", detail,
	)
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
