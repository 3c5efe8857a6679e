package pg

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`create table if not exists users (
		id                  text primary key,
		username            text not null,
		email               text not null,
		password_hash       text not null,
		department          text not null default '',
		date_of_birth       text not null default '',
		active              boolean not null default true,
		two_factor_enabled  boolean not null default false,
		totp_secret         text not null default '',
		pending_totp_secret text not null default '',
		last_login_at       timestamptz,
		created_at          timestamptz not null default now()
	)`,
	`create unique index if not exists users_username_lower_idx on users (lower(username))`,
	`create unique index if not exists users_email_lower_idx on users (lower(email))`,
	`create table if not exists user_roles (
		user_id text not null references users(id) on delete cascade,
		role    text not null,
		primary key (user_id, role)
	)`,
	`create table if not exists role_permissions (
		role       text not null,
		permission text not null,
		primary key (role, permission)
	)`,
	`create table if not exists resources (
		id         text primary key,
		owner_id   text not null default '',
		department text not null default '',
		is_public  boolean not null default false
	)`,
}

// Migrate creates the tables used by [Store].
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
