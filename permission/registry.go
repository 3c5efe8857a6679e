package permission

import (
	"errors"
	"strings"
	"sync"
)

// ErrLimitExceeded is returned once [MaxBits] permissions are registered.
var ErrLimitExceeded = errors.New("permission limit exceeded")

// Registry maps permission names to bit positions. Names are matched
// case-insensitively; the spelling of the first registration is kept.
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nameToBit: make(map[string]int)}
}

// Register returns the bit for name, assigning the next free one if name is new.
func (r *Registry) Register(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if bit, ok := r.nameToBit[key]; ok {
		return bit, nil
	}
	next := len(r.bitToName)
	if next >= MaxBits {
		return -1, ErrLimitExceeded
	}
	r.nameToBit[key] = next
	r.bitToName = append(r.bitToName, name)
	return next, nil
}

// Bit returns the bit index for name, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[strings.ToLower(strings.TrimSpace(name))]
	return bit, ok
}

// Name returns the permission name for bit, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.bitToName) {
		return "", false
	}
	return r.bitToName[bit], true
}

// Names resolves every set bit of m.
func (r *Registry) Names(m Mask) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, bit := range m.Bits() {
		if bit < len(r.bitToName) {
			out = append(out, r.bitToName[bit])
		}
	}
	return out
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bitToName)
}
