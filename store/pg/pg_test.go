package pg

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/policy"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db), mock
}

var userColumns = []string{
	"id", "username", "email", "password_hash", "department", "date_of_birth",
	"active", "two_factor_enabled", "totp_secret", "pending_totp_secret",
	"last_login_at", "created_at",
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	s, mock := newMock(t)
	for range schema {
		mock.ExpectExec("create").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), s.DB()))
}

func TestMigrateReportsFailingStep(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("create table if not exists users").WillReturnError(errors.New("permission denied"))
	err := Migrate(context.Background(), s.DB())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}

func TestFindByUsernameLoadsRoles(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	login := created.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("where lower(username) = lower($1)")).
		WithArgs("Alice").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			"u1", "alice", "alice@example.com", "$argon2id$x", "Engineering", "1990-04-15",
			true, true, "SECRET", "", login, created,
		))
	mock.ExpectQuery("select role from user_roles").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("Admin").AddRow("User"))

	u, err := s.FindByUsername(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []string{"Admin", "User"}, u.Roles)
	assert.True(t, u.TwoFactorEnabled)
	assert.Equal(t, "SECRET", u.TOTPSecret)
	assert.True(t, u.LastLoginAt.Equal(login))
}

func TestFindByIDNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("where id = $1")).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := s.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, goAuthz.ErrUserNotFound)
}

func TestIdentityExists(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("select exists").
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.IdentityExists(context.Background(), "alice", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateUserInsertsRolesInTransaction(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("insert into users").
		WithArgs("u1", "alice", "alice@example.com", "hash", "", "", created).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into user_roles").WithArgs("u1", "User").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.CreateUser(context.Background(), goAuthz.NewUser{
		ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash",
		Roles: []string{"User"}, CreatedAt: created,
	})
	require.NoError(t, err)
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into users").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	err := s.CreateUser(context.Background(), goAuthz.NewUser{ID: "u1", Username: "alice"})
	assert.ErrorIs(t, err, goAuthz.ErrDuplicateIdentity)
}

func TestUpdatesReportMissingUser(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("update users set last_login_at").WithArgs("u1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update users").
		WithArgs("ghost", true, "S", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.UpdateLastLogin(context.Background(), "u1", at))
	err := s.SetTwoFactor(context.Background(), "ghost", goAuthz.TwoFactorState{Enabled: true, Secret: "S"})
	assert.ErrorIs(t, err, goAuthz.ErrUserNotFound)
}

func TestPermissionsForRoles(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("where role in ($1, $2)")).
		WithArgs("Admin", "User").
		WillReturnRows(sqlmock.NewRows([]string{"permission"}).AddRow("documents:read").AddRow("documents:write"))

	perms, err := s.Permissions().PermissionsForRoles(context.Background(), []string{"Admin", "User"})
	require.NoError(t, err)
	assert.Equal(t, []string{"documents:read", "documents:write"}, perms)

	perms, err = s.Permissions().PermissionsForRoles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestGrantAndRevoke(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("insert into role_permissions").WithArgs("User", "a").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into role_permissions").WithArgs("User", "b").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("delete from role_permissions").WithArgs("User", "a").WillReturnResult(sqlmock.NewResult(0, 1))

	perms := s.Permissions()
	require.NoError(t, perms.Grant(context.Background(), "User", "a", "b"))
	require.NoError(t, perms.Revoke(context.Background(), "User", "a"))
}

func TestFindResource(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("from resources").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "department", "is_public"}).AddRow("doc-1", "u1", "Eng", false))
	mock.ExpectQuery("from resources").WithArgs("doc-2").WillReturnError(sql.ErrNoRows)

	r, err := s.FindResource(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, &policy.Resource{ID: "doc-1", OwnerID: "u1", Department: "Eng"}, r)

	r, err = s.FindResource(context.Background(), "doc-2")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestPutResourceUpserts(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("insert into resources").
		WithArgs("doc-1", "u1", "Eng", true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.PutResource(context.Background(), policy.Resource{ID: "doc-1", OwnerID: "u1", Department: "Eng", IsPublic: true}))
}
