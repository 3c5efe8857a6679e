package refresh

import (
	"context"
	"errors"
	"time"
)

// Revocation reasons recorded on refresh records.
const (
	ReasonRefreshed = "Refreshed"
	ReasonLogout    = "Logout"
	ReasonLogoutAll = "LogoutAll"
	ReasonReuse     = "ReuseDetected"
)

var (
	// ErrNotFound is returned when no record exists for a hash.
	ErrNotFound = errors.New("refresh record not found")
	// ErrExpired is returned when rotating a record past its expiry.
	ErrExpired = errors.New("refresh record expired")
	// ErrRevoked is returned when rotating an already revoked record.
	ErrRevoked = errors.New("refresh record revoked")
	// ErrCorrupt is returned when a stored record cannot be interpreted.
	ErrCorrupt = errors.New("refresh record corrupt")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("refresh store unavailable")
)

// Record is the persisted state of one refresh token.
type Record struct {
	TokenHash     string
	UserID        string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Revoked       bool
	RevokedReason string
	ReplacedBy    string
}

// Active reports whether the record can still be exchanged at now.
func (r Record) Active(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// Store persists refresh records. Implementations must make Rotate and Revoke
// atomic with respect to concurrent callers on the same record.
type Store interface {
	Save(ctx context.Context, rec Record, now time.Time) error
	Get(ctx context.Context, hash string) (Record, error)
	// Rotate revokes oldHash with reason and saves next, or changes nothing.
	Rotate(ctx context.Context, oldHash string, next Record, reason string, now time.Time) error
	// Revoke marks hash revoked. It reports false when the record was missing or
	// already revoked.
	Revoke(ctx context.Context, hash, reason string) (bool, error)
	// RevokeAllForUser revokes every live record of userID and returns how many
	// changed.
	RevokeAllForUser(ctx context.Context, userID, reason string) (int, error)
}
