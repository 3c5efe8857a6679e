package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAuthz/claims"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// TempTokenType marks tokens that only authorize second-factor verification.
const TempTokenType = "TempToken"

// MinKeySize is the shortest HS256 signing key accepted.
const MinKeySize = 32

var (
	// ErrInvalidToken is the single failure returned by token parsing. The cause
	// is not exposed to callers.
	ErrInvalidToken = errors.New("invalid token")
	// ErrReservedClaim is returned when extra claims try to override a claim the
	// manager owns.
	ErrReservedClaim = errors.New("reserved claim")
)

var reservedClaims = []string{"iss", "aud", "exp", "iat", "nbf", "jti", claims.Subject, claims.TokenType}

// Config controls token issuance and validation.
type Config struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	TempTTL    time.Duration
	Now        func() time.Time
}

// Manager signs and verifies HS256 tokens. It is safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a manager. Zero TTLs default to one hour
// for access tokens and five minutes for temporary tokens.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SigningKey) < MinKeySize {
		return nil, fmt.Errorf("hs256 signing key must be at least %d bytes", MinKeySize)
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.TempTTL == 0 {
		cfg.TempTTL = 5 * time.Minute
	}
	if cfg.AccessTTL < 0 || cfg.TempTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)
	cfg.SigningKey = key

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// IssueAccess signs an access token for subjectID. The payload is the flat
// claim map of extra plus the subject, roles and registered claims. It returns
// the compact token and its expiry.
func (m *Manager) IssueAccess(subjectID string, roles []string, extra claims.Principal) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, errors.New("empty subject")
	}
	for _, t := range extra.Types() {
		if isReserved(t) {
			return "", time.Time{}, fmt.Errorf("%w: %s", ErrReservedClaim, t)
		}
	}

	p := extra.Clone()
	p.Add(claims.Subject, subjectID)
	for _, r := range roles {
		if !p.HasRole(r) {
			p.Add(claims.Role, r)
		}
	}

	mc := jwt.MapClaims{}
	for k, v := range p.ToMap() {
		mc[k] = v
	}
	exp := m.stamp(mc, m.config.AccessTTL)

	signed, err := m.sign(mc)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccess verifies an access token and returns its claims. Temporary tokens
// are rejected. Every failure is [ErrInvalidToken].
func (m *Manager) ParseAccess(tokenStr string) (claims.Principal, error) {
	mc, err := m.parse(tokenStr)
	if err != nil {
		return claims.Principal{}, ErrInvalidToken
	}
	if _, ok := mc[claims.TokenType]; ok {
		return claims.Principal{}, ErrInvalidToken
	}

	p, err := claims.FromMap(mc, "iss", "aud", "exp", "iat", "nbf", "jti")
	if err != nil || p.ID() == "" {
		return claims.Principal{}, ErrInvalidToken
	}
	return p, nil
}

// IssueTemp signs a temporary second-factor token for userID.
func (m *Manager) IssueTemp(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("empty subject")
	}
	mc := jwt.MapClaims{
		claims.Subject:   userID,
		claims.TokenType: TempTokenType,
	}
	exp := m.stamp(mc, m.config.TempTTL)

	signed, err := m.sign(mc)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseTemp verifies a temporary token and returns the user id it was issued
// for. Access tokens are rejected.
func (m *Manager) ParseTemp(tokenStr string) (string, error) {
	mc, err := m.parse(tokenStr)
	if err != nil {
		return "", ErrInvalidToken
	}
	if typ, _ := mc[claims.TokenType].(string); typ != TempTokenType {
		return "", ErrInvalidToken
	}
	sub, _ := mc[claims.Subject].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func (m *Manager) stamp(mc jwt.MapClaims, ttl time.Duration) time.Time {
	now := m.now()
	exp := now.Add(ttl)
	mc["iat"] = now.Unix()
	mc["exp"] = exp.Unix()
	mc["jti"] = ulid.Make().String()
	if m.config.Issuer != "" {
		mc["iss"] = m.config.Issuer
	}
	if m.config.Audience != "" {
		mc["aud"] = m.config.Audience
	}
	return time.Unix(exp.Unix(), 0)
}

func (m *Manager) sign(mc jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(m.config.SigningKey)
}

func (m *Manager) parse(tokenStr string) (jwt.MapClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.SigningKey, nil
	})
	if err != nil {
		return nil, err
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return mc, nil
}

func isReserved(claimType string) bool {
	for _, r := range reservedClaims {
		if r == claimType {
			return true
		}
	}
	return false
}
