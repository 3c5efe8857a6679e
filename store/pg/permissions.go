package pg

import (
	"context"
	"strconv"
	"strings"

	"github.com/MrEthical07/goAuthz/policy"
)

// Permissions reads role grants from role_permissions on every call, so
// changes are visible to the next policy evaluation.
type Permissions struct {
	store *Store
}

var _ policy.PermissionSource = (*Permissions)(nil)

// Permissions returns the grant table of s.
func (s *Store) Permissions() *Permissions {
	return &Permissions{store: s}
}

// PermissionsForRoles returns the distinct permissions granted to any of
// roles.
func (p *Permissions) PermissionsForRoles(ctx context.Context, roles []string) ([]string, error) {
	if p.store.db == nil {
		return nil, errNoDB
	}
	if len(roles) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(roles))
	args := make([]any, len(roles))
	for i, r := range roles {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = r
	}
	rows, err := p.store.db.QueryContext(ctx, `
		select distinct permission from role_permissions
		where role in (`+strings.Join(placeholders, ", ")+`)
		order by permission
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// Grant adds permissions to role. Existing grants are left untouched.
func (p *Permissions) Grant(ctx context.Context, role string, permissions ...string) error {
	if p.store.db == nil {
		return errNoDB
	}
	for _, perm := range permissions {
		if _, err := p.store.db.ExecContext(ctx, `
			insert into role_permissions (role, permission) values ($1, $2)
			on conflict do nothing
		`, role, perm); err != nil {
			return err
		}
	}
	return nil
}

// Revoke removes permissions from role.
func (p *Permissions) Revoke(ctx context.Context, role string, permissions ...string) error {
	if p.store.db == nil {
		return errNoDB
	}
	for _, perm := range permissions {
		if _, err := p.store.db.ExecContext(ctx,
			`delete from role_permissions where role = $1 and permission = $2`, role, perm); err != nil {
			return err
		}
	}
	return nil
}
