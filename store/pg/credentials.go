package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goAuthz "github.com/MrEthical07/goAuthz"
)

const selectUser = `
	select id, username, email, password_hash, department, date_of_birth,
	       active, two_factor_enabled, totp_secret, pending_totp_secret,
	       last_login_at, created_at
	from users
`

// FindByUsername matches lower(username), served by users_username_lower_idx.
func (s *Store) FindByUsername(ctx context.Context, username string) (goAuthz.UserRecord, error) {
	return s.findUser(ctx, selectUser+`where lower(username) = lower($1)`, username)
}

// FindByID loads a user and its roles.
func (s *Store) FindByID(ctx context.Context, userID string) (goAuthz.UserRecord, error) {
	return s.findUser(ctx, selectUser+`where id = $1`, userID)
}

func (s *Store) findUser(ctx context.Context, query string, arg string) (goAuthz.UserRecord, error) {
	if s.db == nil {
		return goAuthz.UserRecord{}, errNoDB
	}
	var (
		u         goAuthz.UserRecord
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Department, &u.DateOfBirth,
		&u.Active, &u.TwoFactorEnabled, &u.TOTPSecret, &u.PendingTOTPSecret,
		&lastLogin, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return goAuthz.UserRecord{}, goAuthz.ErrUserNotFound
	}
	if err != nil {
		return goAuthz.UserRecord{}, err
	}
	if lastLogin.Valid {
		u.LastLoginAt = lastLogin.Time
	}

	roles, err := s.rolesOf(ctx, u.ID)
	if err != nil {
		return goAuthz.UserRecord{}, err
	}
	u.Roles = roles
	return u, nil
}

func (s *Store) rolesOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select role from user_roles where user_id = $1 order by role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// IdentityExists reports whether username or email is taken, ignoring case.
func (s *Store) IdentityExists(ctx context.Context, username, email string) (bool, error) {
	if s.db == nil {
		return false, errNoDB
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from users
			where lower(username) = lower($1) or lower(email) = lower($2)
		)
	`, username, email).Scan(&exists)
	return exists, err
}

// CreateUser inserts the user and its roles in one transaction. A unique
// violation maps to [goAuthz.ErrDuplicateIdentity].
func (s *Store) CreateUser(ctx context.Context, nu goAuthz.NewUser) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		insert into users (id, username, email, password_hash, department, date_of_birth, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, nu.ID, nu.Username, nu.Email, nu.PasswordHash, nu.Department, nu.DateOfBirth, nu.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return goAuthz.ErrDuplicateIdentity
		}
		return err
	}
	for _, role := range nu.Roles {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role) values ($1, $2)
			on conflict do nothing
		`, nu.ID, role); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateLastLogin sets last_login_at.
func (s *Store) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	return s.updateUser(ctx, `update users set last_login_at = $2 where id = $1`, userID, at)
}

// SetTwoFactor writes all two-factor columns at once.
func (s *Store) SetTwoFactor(ctx context.Context, userID string, state goAuthz.TwoFactorState) error {
	return s.updateUser(ctx, `
		update users
		set two_factor_enabled = $2, totp_secret = $3, pending_totp_secret = $4
		where id = $1
	`, userID, state.Enabled, state.Secret, state.PendingSecret)
}

// SetActive toggles the active flag of a user.
func (s *Store) SetActive(ctx context.Context, userID string, active bool) error {
	return s.updateUser(ctx, `update users set active = $2 where id = $1`, userID, active)
}

// SetRoles replaces the roles of a user.
func (s *Store) SetRoles(ctx context.Context, userID string, roles ...string) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, userID); err != nil {
		return err
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role) values ($1, $2)
			on conflict do nothing
		`, userID, role); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) updateUser(ctx context.Context, query string, userID string, args ...any) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return goAuthz.ErrUserNotFound
	}
	return nil
}
