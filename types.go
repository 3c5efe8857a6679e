package goAuthz

import (
	"context"
	"time"

	"github.com/MrEthical07/goAuthz/policy"
)

// UserRecord is the persisted account as seen by the engine.
type UserRecord struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Roles        []string
	Department   string
	// DateOfBirth is kept verbatim; the policy evaluator parses it.
	DateOfBirth string
	Active      bool

	TwoFactorEnabled bool
	// TOTPSecret is the Base32 secret while two-factor is enabled.
	TOTPSecret string
	// PendingTOTPSecret holds an enrollment awaiting confirmation.
	PendingTOTPSecret string

	LastLoginAt time.Time
	CreatedAt   time.Time
}

// NewUser is the input of [CredentialStore.CreateUser].
type NewUser struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Roles        []string
	Department   string
	DateOfBirth  string
	CreatedAt    time.Time
}

// TwoFactorState is written by [CredentialStore.SetTwoFactor] as one unit.
type TwoFactorState struct {
	Enabled       bool
	Secret        string
	PendingSecret string
}

// CredentialStore is the account persistence the engine consumes. Lookups of
// absent users return [ErrUserNotFound]; CreateUser returns
// [ErrDuplicateIdentity] when a uniqueness constraint is hit.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (UserRecord, error)
	FindByID(ctx context.Context, userID string) (UserRecord, error)
	// IdentityExists matches username and email case-insensitively.
	IdentityExists(ctx context.Context, username, email string) (bool, error)
	CreateUser(ctx context.Context, user NewUser) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	SetTwoFactor(ctx context.Context, userID string, state TwoFactorState) error
}

// ResourceStore loads authorization resources by id. It returns nil and no
// error when the resource does not exist.
type ResourceStore interface {
	FindResource(ctx context.Context, id string) (*policy.Resource, error)
}

// RegisterRequest is the input of [Engine.Register]. Department and
// DateOfBirth are optional.
type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	Department  string
	DateOfBirth string
}

// LoginResult is returned by [Engine.Login] and [Engine.Verify2FA]. When
// TwoFactorRequired is set only TempToken is populated.
type LoginResult struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time

	TwoFactorRequired bool
	TempToken         string
}

// TwoFactorEnrollment is returned by [Engine.Enable2FA]. Pending is true when
// the enrollment must be confirmed with a code before it takes effect.
type TwoFactorEnrollment struct {
	Secret  string
	URI     string
	Pending bool
}
