package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// SecretSize is the raw secret length in bytes (160 bits).
	SecretSize = 20
	// Digits is the code length.
	Digits = 6
	// Period is the time-step size.
	Period = 30 * time.Second

	periodSeconds = int64(Period / time.Second)
	skewSteps     = 1
)

// ErrInvalidSecret is returned when a secret does not decode to any key bytes.
var ErrInvalidSecret = errors.New("invalid totp secret")

// GenerateSecret draws [SecretSize] random bytes and returns them Base32 encoded.
func GenerateSecret() (string, error) {
	raw := make([]byte, SecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return Encode(raw), nil
}

// ProvisioningURI builds an otpauth:// URI understood by authenticator apps.
// issuer and label are percent-encoded separately, so the only raw ':' in the
// path is the separator between them.
func ProvisioningURI(label, secret, issuer string) string {
	path := escapeLabel(label)
	v := url.Values{}
	v.Set("secret", secret)
	if issuer != "" {
		path = escapeLabel(issuer) + ":" + path
		v.Set("issuer", issuer)
	}
	// Several authenticators show a literal '+' for a form-encoded space.
	query := strings.ReplaceAll(v.Encode(), "+", "%20")
	return "otpauth://totp/" + path + "?" + query
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}

// Step returns the time-step counter for t.
func Step(t time.Time) int64 {
	unix := t.Unix()
	step := unix / periodSeconds
	if unix%periodSeconds < 0 {
		step--
	}
	return step
}

// Code derives the code for secret at instant t.
func Code(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return hotp(key, Step(t), Digits), nil
}

// Validate reports whether code matches secret at now, accepting one step of
// clock skew either way. Consumed codes are not tracked here.
func Validate(secret, code string, now time.Time) bool {
	_, ok := Match(secret, code, now)
	return ok
}

// Match is [Validate] that also returns the matched time step.
func Match(secret, code string, now time.Time) (int64, bool) {
	if len(code) != Digits {
		return 0, false
	}
	key, err := decodeSecret(secret)
	if err != nil {
		return 0, false
	}

	base := Step(now)
	for offset := int64(-skewSteps); offset <= skewSteps; offset++ {
		step := base + offset
		if step < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotp(key, step, Digits)), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

func decodeSecret(secret string) ([]byte, error) {
	key, err := Decode(secret)
	if err != nil {
		return nil, ErrInvalidSecret
	}
	if len(key) == 0 {
		return nil, ErrInvalidSecret
	}
	return key, nil
}

// hotp is RFC 4226 over HMAC-SHA1 with dynamic truncation.
func hotp(key []byte, counter int64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (uint32(sum[offset])&0x7f)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod)
}
