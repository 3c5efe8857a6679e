package claims

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Well-known claim types.
const (
	Subject     = "sub"
	Username    = "username"
	Email       = "email"
	Role        = "role"
	Department  = "department"
	DateOfBirth = "date_of_birth"
	TokenType   = "token_type"
)

// ErrInvalidClaimValue is returned by [FromMap] for values that are neither a
// string nor a list of strings.
var ErrInvalidClaimValue = errors.New("invalid claim value")

// Principal is an unordered multimap of claim type to values. The zero value is
// an empty principal ready for Add.
type Principal struct {
	values map[string][]string
}

// New builds a principal for subjectID holding the given roles.
func New(subjectID string, roles ...string) Principal {
	p := Principal{}
	if subjectID != "" {
		p.Add(Subject, subjectID)
	}
	for _, r := range roles {
		p.Add(Role, r)
	}
	return p
}

// Add appends value under claimType. Empty types or values are ignored.
func (p *Principal) Add(claimType, value string) {
	if claimType == "" || value == "" {
		return
	}
	if p.values == nil {
		p.values = make(map[string][]string)
	}
	p.values[claimType] = append(p.values[claimType], value)
}

// Values returns a copy of every value stored under claimType.
func (p Principal) Values(claimType string) []string {
	vals := p.values[claimType]
	if len(vals) == 0 {
		return nil
	}
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

// First returns the first value stored under claimType.
func (p Principal) First(claimType string) (string, bool) {
	vals := p.values[claimType]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Has reports whether any value of claimType equals value, ignoring case.
func (p Principal) Has(claimType, value string) bool {
	for _, v := range p.values[claimType] {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// HasRole reports whether the principal holds role. Role names match exactly.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.values[Role] {
		if r == role {
			return true
		}
	}
	return false
}

// ID returns the subject id.
func (p Principal) ID() string {
	id, _ := p.First(Subject)
	return id
}

// Roles returns the role claims.
func (p Principal) Roles() []string {
	return p.Values(Role)
}

// Types returns the claim types present, sorted.
func (p Principal) Types() []string {
	out := make([]string, 0, len(p.values))
	for k := range p.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of claim values.
func (p Principal) Len() int {
	n := 0
	for _, vals := range p.values {
		n += len(vals)
	}
	return n
}

// Clone returns a deep copy.
func (p Principal) Clone() Principal {
	out := Principal{}
	if len(p.values) == 0 {
		return out
	}
	out.values = make(map[string][]string, len(p.values))
	for k, vals := range p.values {
		cp := make([]string, len(vals))
		copy(cp, vals)
		out.values[k] = cp
	}
	return out
}

// Equal reports whether both principals hold the same values per claim type,
// irrespective of value order.
func (p Principal) Equal(other Principal) bool {
	if len(p.values) != len(other.values) {
		return false
	}
	for k, vals := range p.values {
		ov, ok := other.values[k]
		if !ok || len(ov) != len(vals) {
			return false
		}
		a := append([]string(nil), vals...)
		b := append([]string(nil), ov...)
		sort.Strings(a)
		sort.Strings(b)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

// ToMap renders the principal as a flat claim map: a single value becomes a
// string, several values become a string list.
func (p Principal) ToMap() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, vals := range p.values {
		switch len(vals) {
		case 0:
		case 1:
			out[k] = vals[0]
		default:
			cp := make([]string, len(vals))
			copy(cp, vals)
			out[k] = cp
		}
	}
	return out
}

// FromMap decodes a flat claim map. Keys listed in skip are ignored. Values
// must be strings or lists of strings; JSON-decoded []any lists are accepted.
func FromMap(m map[string]any, skip ...string) (Principal, error) {
	p := Principal{}
	for k, raw := range m {
		if contains(skip, k) {
			continue
		}
		switch v := raw.(type) {
		case string:
			p.Add(k, v)
		case []string:
			for _, s := range v {
				p.Add(k, s)
			}
		case []any:
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return Principal{}, fmt.Errorf("%w: %s", ErrInvalidClaimValue, k)
				}
				p.Add(k, s)
			}
		default:
			return Principal{}, fmt.Errorf("%w: %s", ErrInvalidClaimValue, k)
		}
	}
	return p, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
