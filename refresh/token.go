package refresh

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// TokenSize is the number of random bytes in a refresh token.
const TokenSize = 64

// ErrMalformed is returned for strings that cannot be a refresh token.
var ErrMalformed = errors.New("malformed refresh token")

// NewToken draws a fresh token and returns it with its storage hash.
func NewToken() (token string, hash string, err error) {
	var raw [TokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(raw[:])
	sum := sha256.Sum256(raw[:])
	return token, hex.EncodeToString(sum[:]), nil
}

// HashToken returns the storage hash of token after checking its shape.
func HashToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != TokenSize {
		return "", ErrMalformed
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
