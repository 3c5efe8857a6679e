package goAuthz

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/policy"
)

// Config is the full engine configuration. Start from [DefaultConfig] and
// override fields; [Builder.Build] validates the result.
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	TOTP     TOTPConfig
	Password PasswordConfig
	Account  AccountConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Policy   PolicyConfig

	// Now is the clock used by every component. Defaults to time.Now.
	Now func() time.Time
}

/*
====================================
TOKEN CONFIG
====================================
*/

// JWTConfig controls access and temporary second-factor tokens.
type JWTConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	TempTTL    time.Duration
}

// RefreshConfig controls refresh tokens.
type RefreshConfig struct {
	TTL         time.Duration
	RedisPrefix string
	// RevokeFamilyOnReuse revokes every refresh token of a user when an already
	// rotated token is presented again.
	RevokeFamilyOnReuse bool
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

// TOTPConfig controls second-factor enrollment and verification.
type TOTPConfig struct {
	Issuer string
	// EnforceReplayProtection rejects a code whose time step was already
	// accepted for the same user.
	EnforceReplayProtection bool
	// RequireConfirmation keeps a new secret pending until ConfirmEnable2FA.
	RequireConfirmation bool
}

// PasswordConfig holds Argon2id parameters and the length policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int
}

// AccountConfig controls registration.
type AccountConfig struct {
	DefaultRole       string
	MinUsernameLength int
	MaxUsernameLength int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls throttling of credential and second-factor attempts.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	EnableTOTPThrottle    bool
	MaxTOTPAttempts       int
	TOTPCooldown          time.Duration
	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// PolicyConfig declares named policies and the zone used for time windows.
type PolicyConfig struct {
	Definitions []policy.Definition
	// Location defaults to time.Local.
	Location *time.Location
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. JWT.SigningKey must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:    "goAuthz",
			Audience:  "goAuthz",
			AccessTTL: time.Hour,
			TempTTL:   5 * time.Minute,
		},
		Refresh: RefreshConfig{
			TTL:                 7 * 24 * time.Hour,
			RedisPrefix:         "goauthz",
			RevokeFamilyOnReuse: false,
		},
		TOTP: TOTPConfig{
			Issuer:                  "goAuthz",
			EnforceReplayProtection: true,
			RequireConfirmation:     false,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
			MaxLength:   1024,
		},
		Account: AccountConfig{
			DefaultRole:       "User",
			MinUsernameLength: 3,
			MaxUsernameLength: 64,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			MaxLoginAttempts:      5,
			LoginCooldown:         15 * time.Minute,
			EnableTOTPThrottle:    true,
			MaxTOTPAttempts:       5,
			TOTPCooldown:          5 * time.Minute,
			EnableRefreshThrottle: false,
			MaxRefreshAttempts:    20,
			RefreshCooldown:       time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	if cfg.Policy.Definitions != nil {
		out.Policy.Definitions = append([]policy.Definition(nil), cfg.Policy.Definitions...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.SigningKey) < jwt.MinKeySize {
		return errors.New("JWT SigningKey must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.TempTTL <= 0 {
		return errors.New("JWT TempTTL must be > 0")
	}
	if c.JWT.TempTTL > 15*time.Minute {
		return errors.New("JWT TempTTL must be <= 15m")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must exceed JWT AccessTTL")
	}
	if strings.TrimSpace(c.Refresh.RedisPrefix) == "" {
		return errors.New("Refresh RedisPrefix must not be empty")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password length bounds are invalid")
	}

	// Account
	if strings.TrimSpace(c.Account.DefaultRole) == "" {
		return errors.New("Account DefaultRole must not be empty")
	}
	if c.Account.MinUsernameLength < 1 || c.Account.MaxUsernameLength < c.Account.MinUsernameLength {
		return errors.New("Account username length bounds are invalid")
	}

	// Security
	if c.Security.EnableLoginThrottle && (c.Security.MaxLoginAttempts <= 0 || c.Security.LoginCooldown <= 0) {
		return errors.New("Security login throttle requires MaxLoginAttempts and LoginCooldown > 0")
	}
	if c.Security.EnableTOTPThrottle && (c.Security.MaxTOTPAttempts <= 0 || c.Security.TOTPCooldown <= 0) {
		return errors.New("Security TOTP throttle requires MaxTOTPAttempts and TOTPCooldown > 0")
	}
	if c.Security.EnableRefreshThrottle && (c.Security.MaxRefreshAttempts <= 0 || c.Security.RefreshCooldown <= 0) {
		return errors.New("Security refresh throttle requires MaxRefreshAttempts and RefreshCooldown > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Policies
	seen := make(map[string]struct{}, len(c.Policy.Definitions))
	for _, def := range c.Policy.Definitions {
		if _, dup := seen[def.Name]; dup {
			return errors.New("Policy names must be unique: " + def.Name)
		}
		seen[def.Name] = struct{}{}
		if _, err := def.Build(); err != nil {
			return err
		}
	}

	return nil
}
