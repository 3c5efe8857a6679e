package totp

import (
	"errors"
	"strings"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// ErrInvalidBase32 is returned by [Decode] for symbols outside the RFC 4648 alphabet.
var ErrInvalidBase32 = errors.New("invalid base32 input")

var base32Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base32Alphabet); i++ {
		c := base32Alphabet[i]
		idx[c] = int8(i)
		idx[c|0x20] = int8(i) // lower case
	}
	return idx
}()

// Encode packs data into 5-bit groups, most significant bit first, and maps
// each group through the RFC 4648 alphabet. No padding is emitted.
func Encode(data []byte) string {
	var b strings.Builder
	b.Grow((len(data)*8 + 4) / 5)

	var buffer uint32
	bits := 0
	for _, c := range data {
		buffer = buffer<<8 | uint32(c)
		bits += 8
		for bits >= 5 {
			b.WriteByte(base32Alphabet[(buffer>>(bits-5))&0x1f])
			bits -= 5
		}
	}
	if bits > 0 {
		b.WriteByte(base32Alphabet[(buffer<<(5-bits))&0x1f])
	}
	return b.String()
}

// Decode reverses [Encode]. Input is case-insensitive and trailing '='
// padding is optional. Leftover bits shorter than a byte are dropped.
func Decode(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	out := make([]byte, 0, len(s)*5/8)

	var buffer uint32
	bits := 0
	for i := 0; i < len(s); i++ {
		v := base32Index[s[i]]
		if v < 0 {
			return nil, ErrInvalidBase32
		}
		buffer = buffer<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			out = append(out, byte(buffer>>(bits-8)))
			bits -= 8
		}
	}
	return out, nil
}
