package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MrEthical07/goAuthz/claims"
)

var (
	// ErrInvalidPolicy is returned when a policy has no name, mixes requirements
	// with roles, or has neither.
	ErrInvalidPolicy = errors.New("invalid policy")
	// ErrUnknownPolicy is returned by [Set.Get] for names never added.
	ErrUnknownPolicy = errors.New("unknown policy")
)

// Policy is a named authorization rule. Construct it with [Requirements] or
// [Roles]; the zero value denies everything.
type Policy struct {
	name         string
	requirements []Requirement
	roles        []string
}

// Requirements builds a policy that passes when every requirement is satisfied.
func Requirements(name string, reqs ...Requirement) (Policy, error) {
	if strings.TrimSpace(name) == "" {
		return Policy{}, fmt.Errorf("%w: empty name", ErrInvalidPolicy)
	}
	if len(reqs) == 0 {
		return Policy{}, fmt.Errorf("%w: %s has no requirements", ErrInvalidPolicy, name)
	}
	for i, r := range reqs {
		if r == nil {
			return Policy{}, fmt.Errorf("%w: %s requirement %d is nil", ErrInvalidPolicy, name, i)
		}
	}
	out := make([]Requirement, len(reqs))
	copy(out, reqs)
	return Policy{name: name, requirements: out}, nil
}

// Roles builds a policy that passes when the principal holds any of roles.
func Roles(name string, roles ...string) (Policy, error) {
	if strings.TrimSpace(name) == "" {
		return Policy{}, fmt.Errorf("%w: empty name", ErrInvalidPolicy)
	}
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return Policy{}, fmt.Errorf("%w: %s has no roles", ErrInvalidPolicy, name)
	}
	return Policy{name: name, roles: out}, nil
}

// MustRequirements is [Requirements] that panics on error. Intended for
// package-level policy declarations.
func MustRequirements(name string, reqs ...Requirement) Policy {
	p, err := Requirements(name, reqs...)
	if err != nil {
		panic(err)
	}
	return p
}

// MustRoles is [Roles] that panics on error.
func MustRoles(name string, roles ...string) Policy {
	p, err := Roles(name, roles...)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the policy name.
func (p Policy) Name() string { return p.name }

// IsRolePolicy reports whether p is a role-membership policy.
func (p Policy) IsRolePolicy() bool { return len(p.roles) > 0 }

// RequirementList returns a copy of the policy's requirements.
func (p Policy) RequirementList() []Requirement {
	out := make([]Requirement, len(p.requirements))
	copy(out, p.requirements)
	return out
}

// RoleList returns a copy of the policy's roles.
func (p Policy) RoleList() []string {
	out := make([]string, len(p.roles))
	copy(out, p.roles)
	return out
}

func (p Policy) String() string {
	if p.IsRolePolicy() {
		return p.name + ": roles " + strings.Join(p.roles, " | ")
	}
	parts := make([]string, len(p.requirements))
	for i, r := range p.requirements {
		parts[i] = r.String()
	}
	return p.name + ": " + strings.Join(parts, " & ")
}

// Resource describes the object an authorization decision is about.
type Resource struct {
	ID         string
	OwnerID    string
	Department string
	IsPublic   bool
}

// AuthorizationContext is the input of one evaluation. Resource may be nil.
type AuthorizationContext struct {
	Principal claims.Principal
	Resource  *Resource
}

// PermissionSource resolves the permission names granted to a set of roles.
// It is consulted on every [Permission] check, so grant changes take effect
// on the next evaluation.
type PermissionSource interface {
	PermissionsForRoles(ctx context.Context, roles []string) ([]string, error)
}

// Decision is the outcome of an evaluation.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Allowed reports whether d is [Allow].
func (d Decision) Allowed() bool { return d == Allow }

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Set is a concurrency-safe registry of named policies.
type Set struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewSet returns a set holding policies. Duplicate names fail.
func NewSet(policies ...Policy) (*Set, error) {
	s := &Set{policies: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		if err := s.Add(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers p. Adding a zero policy or a name already present fails.
func (s *Set) Add(p Policy) error {
	if p.name == "" || (len(p.requirements) == 0 && len(p.roles) == 0) {
		return fmt.Errorf("%w: not constructed", ErrInvalidPolicy)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policies == nil {
		s.policies = make(map[string]Policy)
	}
	if _, exists := s.policies[p.name]; exists {
		return fmt.Errorf("%w: duplicate name %q", ErrInvalidPolicy, p.name)
	}
	s.policies[p.name] = p
	return nil
}

// Get returns the policy registered under name.
func (s *Set) Get(name string) (Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
	return p, nil
}

// Names returns the registered names in sorted order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.policies))
	for name := range s.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
