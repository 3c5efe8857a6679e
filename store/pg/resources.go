package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MrEthical07/goAuthz/policy"
)

// FindResource returns nil and no error for unknown ids.
func (s *Store) FindResource(ctx context.Context, id string) (*policy.Resource, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var r policy.Resource
	err := s.db.QueryRowContext(ctx, `
		select id, owner_id, department, is_public
		from resources
		where id = $1
	`, id).Scan(&r.ID, &r.OwnerID, &r.Department, &r.IsPublic)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// PutResource inserts or replaces a resource.
func (s *Store) PutResource(ctx context.Context, r policy.Resource) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into resources (id, owner_id, department, is_public)
		values ($1, $2, $3, $4)
		on conflict (id) do update
		set owner_id = excluded.owner_id, department = excluded.department, is_public = excluded.is_public
	`, r.ID, r.OwnerID, r.Department, r.IsPublic)
	return err
}
