package permission

import "math/bits"

// MaxBits is the number of distinct permissions a [Mask] can hold.
const MaxBits = 512

// Mask is a fixed 512-bit permission set.
type Mask [MaxBits / 64]uint64

// Has reports whether bit is set.
func (m *Mask) Has(bit int) bool {
	if bit < 0 || bit >= MaxBits {
		return false
	}
	return m[bit/64]&(1<<(bit%64)) != 0
}

// Set sets bit. Out-of-range bits are ignored.
func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	m[bit/64] |= 1 << (bit % 64)
}

// Clear clears bit. Out-of-range bits are ignored.
func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	m[bit/64] &^= 1 << (bit % 64)
}

// Or merges other into m.
func (m *Mask) Or(other Mask) {
	for i := range m {
		m[i] |= other[i]
	}
}

// IsZero reports whether no bit is set.
func (m *Mask) IsZero() bool {
	for _, w := range m {
		if w != 0 {
			return false
		}
	}
	return true
}

// Bits returns the set bit positions in ascending order.
func (m *Mask) Bits() []int {
	var out []int
	for i, w := range m {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, i*64+tz)
			w &^= 1 << tz
		}
	}
	return out
}
