package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qInsertAccount = `(?s)^\s*INSERT\s+INTO\s+accounts\s+\(user_name, normalized_user_name,.*RETURNING\s+id$`
	qInsertRole    = `^INSERT INTO account_roles \(account_id, role\) VALUES \(\$1,\$2\)$`
	qDeleteRoles   = `^DELETE FROM account_roles WHERE account_id=\$1$`
	qUpdateAccount = `^UPDATE accounts SET user_name=\$1, normalized_user_name=\$2, .* WHERE id=\$6$`
	qFindByName    = `(?s)FROM accounts a WHERE a\.normalized_user_name=\$1$`
)

var accountColumns = []string{"id", "user_name", "full_name", "phone_number", "status", "password_hash", "registered_at", "role"}

func newRepoWithMock(t *testing.T) (*PgAccountRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewPgAccountRepository(mock), mock
}

func TestPgRepository_CreateWithRoleCommits(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	rec := sampleRecord("alice")

	mock.ExpectBegin()
	mock.ExpectQuery(qInsertAccount).
		WithArgs("alice", "ALICE", rec.FullName, rec.PhoneNumber, rec.Status, rec.PasswordHash, rec.RegisteredAt).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(qInsertRole).WithArgs(int64(7), "user").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	id, err := repo.Create(context.Background(), rec, "user")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestPgRepository_CreateDuplicateRollsBack(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	rec := sampleRecord("bob")

	mock.ExpectBegin()
	mock.ExpectQuery(qInsertAccount).
		WithArgs("bob", "BOB", rec.FullName, rec.PhoneNumber, rec.Status, rec.PasswordHash, rec.RegisteredAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_normalized_user_name_key"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), rec, "user")
	assert.ErrorIs(t, err, ErrDuplicateUserName)
}

func TestPgRepository_UpdateMissingRowIsNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	rec := sampleRecord("ghost")
	rec.ID = 9999

	mock.ExpectBegin()
	mock.ExpectExec(qUpdateAccount).
		WithArgs("ghost", "GHOST", rec.FullName, rec.PhoneNumber, rec.Status, int64(9999)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Update(context.Background(), rec, "user"), ErrAccountNotFound)
}

func TestPgRepository_UpdateDuplicateName(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	rec := sampleRecord("carol")
	rec.ID = 3

	mock.ExpectBegin()
	mock.ExpectExec(qUpdateAccount).
		WithArgs("carol", "CAROL", rec.FullName, rec.PhoneNumber, rec.Status, int64(3)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Update(context.Background(), rec, ""), ErrDuplicateUserName)
}

func TestPgRepository_UpdateReplacesRoleInOneTransaction(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	rec := sampleRecord("dave")
	rec.ID = 5

	mock.ExpectBegin()
	mock.ExpectExec(qUpdateAccount).
		WithArgs("dave", "DAVE", rec.FullName, rec.PhoneNumber, rec.Status, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(qDeleteRoles).WithArgs(int64(5)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(qInsertRole).WithArgs(int64(5), "admin").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), rec, "admin"))
}

func TestPgRepository_UpdateRoleFailureRollsBack(t *testing.T) {
	cases := []struct {
		name    string
		roleErr error
		want    error
	}{
		{"account vanished", &pgconn.PgError{Code: "23503"}, ErrAccountNotFound},
		{"store error", errors.New("roles down"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			rec := sampleRecord("erin")
			rec.ID = 8

			mock.ExpectBegin()
			mock.ExpectExec(qUpdateAccount).
				WithArgs("erin", "ERIN", rec.FullName, rec.PhoneNumber, rec.Status, int64(8)).
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			mock.ExpectExec(qDeleteRoles).WithArgs(int64(8)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
			mock.ExpectExec(qInsertRole).WithArgs(int64(8), "admin").WillReturnError(tc.roleErr)
			mock.ExpectRollback()

			err := repo.Update(context.Background(), rec, "admin")
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			} else {
				assert.Contains(t, err.Error(), "roles down")
			}
		})
	}
}

func TestPgRepository_FindByName(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	registered := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("JST", 9*3600))

	mock.ExpectQuery(qFindByName).WithArgs("ALICE").
		WillReturnRows(mock.NewRows(accountColumns).
			AddRow(int64(1), "alice", "Alice", "555", "active", "$2a$04$hash", registered, "user"))
	mock.ExpectQuery(qFindByName).WithArgs("NOBODY").WillReturnError(pgx.ErrNoRows)

	got, err := repo.FindByName(context.Background(), " alice ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "user", got.Role)
	assert.Equal(t, time.UTC, got.RegisteredAt.Location())
	assert.True(t, got.RegisteredAt.Equal(registered))

	_, err = repo.FindByName(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
