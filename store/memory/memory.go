// Package memory provides in-process implementations of the goAuthz
// credential and resource stores. They are meant for tests, examples and
// single-process tools; state is lost on exit.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/policy"
)

// Store holds users and resources behind a single RWMutex. It implements
// [goAuthz.CredentialStore] and [goAuthz.ResourceStore].
type Store struct {
	mu         sync.RWMutex
	users      map[string]goAuthz.UserRecord
	byUsername map[string]string
	byEmail    map[string]string
	resources  map[string]policy.Resource
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:      make(map[string]goAuthz.UserRecord),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		resources:  make(map[string]policy.Resource),
	}
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cloneUser(u goAuthz.UserRecord) goAuthz.UserRecord {
	u.Roles = append([]string(nil), u.Roles...)
	return u
}

// FindByUsername looks username up case-insensitively.
func (s *Store) FindByUsername(_ context.Context, username string) (goAuthz.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[fold(username)]
	if !ok {
		return goAuthz.UserRecord{}, goAuthz.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

// FindByID returns a copy of the user stored under userID.
func (s *Store) FindByID(_ context.Context, userID string) (goAuthz.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return goAuthz.UserRecord{}, goAuthz.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// IdentityExists reports whether username or email is taken, ignoring case.
func (s *Store) IdentityExists(_ context.Context, username, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, u := s.byUsername[fold(username)]
	_, e := s.byEmail[fold(email)]
	return u || e, nil
}

// CreateUser inserts an active user. Username and email are unique
// case-insensitively.
func (s *Store) CreateUser(_ context.Context, nu goAuthz.NewUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	uname, email := fold(nu.Username), fold(nu.Email)
	if _, ok := s.users[nu.ID]; ok {
		return goAuthz.ErrDuplicateIdentity
	}
	if _, ok := s.byUsername[uname]; ok {
		return goAuthz.ErrDuplicateIdentity
	}
	if _, ok := s.byEmail[email]; ok && email != "" {
		return goAuthz.ErrDuplicateIdentity
	}
	s.users[nu.ID] = goAuthz.UserRecord{
		ID:           nu.ID,
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Roles:        append([]string(nil), nu.Roles...),
		Department:   nu.Department,
		DateOfBirth:  nu.DateOfBirth,
		Active:       true,
		CreatedAt:    nu.CreatedAt,
	}
	s.byUsername[uname] = nu.ID
	if email != "" {
		s.byEmail[email] = nu.ID
	}
	return nil
}

// UpdateLastLogin records a successful login at at.
func (s *Store) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	return s.update(userID, func(u *goAuthz.UserRecord) { u.LastLoginAt = at })
}

// SetTwoFactor replaces the two-factor fields of a user with state.
func (s *Store) SetTwoFactor(_ context.Context, userID string, state goAuthz.TwoFactorState) error {
	return s.update(userID, func(u *goAuthz.UserRecord) {
		u.TwoFactorEnabled = state.Enabled
		u.TOTPSecret = state.Secret
		u.PendingTOTPSecret = state.PendingSecret
	})
}

// SetActive toggles the active flag of a user.
func (s *Store) SetActive(userID string, active bool) error {
	return s.update(userID, func(u *goAuthz.UserRecord) { u.Active = active })
}

// SetRoles replaces the roles of a user. Tokens already issued keep their
// role snapshot.
func (s *Store) SetRoles(userID string, roles ...string) error {
	return s.update(userID, func(u *goAuthz.UserRecord) { u.Roles = append([]string(nil), roles...) })
}

func (s *Store) update(userID string, fn func(*goAuthz.UserRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return goAuthz.ErrUserNotFound
	}
	fn(&u)
	s.users[userID] = u
	return nil
}

// PutResource inserts or replaces a resource.
func (s *Store) PutResource(r policy.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.ID] = r
}

// FindResource returns nil, nil for unknown ids.
func (s *Store) FindResource(_ context.Context, id string) (*policy.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

var (
	_ goAuthz.CredentialStore = (*Store)(nil)
	_ goAuthz.ResourceStore   = (*Store)(nil)
)
