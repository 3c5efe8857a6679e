package permission

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// Grants is a live role → permission table. It is safe for concurrent use and
// satisfies the policy package's PermissionSource.
type Grants struct {
	registry *Registry

	mu    sync.RWMutex
	roles map[string]Mask
}

// NewGrants returns an empty table backed by registry. A nil registry gets a
// private one.
func NewGrants(registry *Registry) *Grants {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Grants{
		registry: registry,
		roles:    make(map[string]Mask),
	}
}

// Grant adds permissions to role, registering unknown names.
func (g *Grants) Grant(role string, permissions ...string) error {
	if strings.TrimSpace(role) == "" {
		return errors.New("role name empty")
	}
	bits := make([]int, 0, len(permissions))
	for _, perm := range permissions {
		bit, err := g.registry.Register(perm)
		if err != nil {
			return err
		}
		bits = append(bits, bit)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	mask := g.roles[role]
	for _, bit := range bits {
		mask.Set(bit)
	}
	g.roles[role] = mask
	return nil
}

// Revoke removes permissions from role. Unknown names are ignored.
func (g *Grants) Revoke(role string, permissions ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	mask, ok := g.roles[role]
	if !ok {
		return
	}
	for _, perm := range permissions {
		if bit, ok := g.registry.Bit(perm); ok {
			mask.Clear(bit)
		}
	}
	g.roles[role] = mask
}

// RemoveRole drops every grant of role.
func (g *Grants) RemoveRole(role string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.roles, role)
}

// Has reports whether role is granted permission.
func (g *Grants) Has(role, permission string) bool {
	bit, ok := g.registry.Bit(permission)
	if !ok {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	mask := g.roles[role]
	return mask.Has(bit)
}

// Permissions returns the names granted to role.
func (g *Grants) Permissions(role string) []string {
	g.mu.RLock()
	mask := g.roles[role]
	g.mu.RUnlock()
	return g.registry.Names(mask)
}

// Roles returns every role with a grant entry, sorted.
func (g *Grants) Roles() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.roles))
	for role := range g.roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// PermissionsForRoles returns the union of permissions granted to roles.
func (g *Grants) PermissionsForRoles(ctx context.Context, roles []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var union Mask
	g.mu.RLock()
	for _, role := range roles {
		union.Or(g.roles[role])
	}
	g.mu.RUnlock()
	return g.registry.Names(union), nil
}
