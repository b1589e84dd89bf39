package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository defines persistence operations for accounts and their roles.
// Lookups by name are case-insensitive. Find* return ErrAccountNotFound when absent;
// Create and Update return ErrDuplicateUserName on a user name collision.
type AccountRepository interface {
	FindByName(ctx context.Context, userName string) (*AccountRecord, error)
	FindByID(ctx context.Context, id int64) (*AccountRecord, error)
	// Create inserts the account and, when role is non-empty, its role in one transaction.
	Create(ctx context.Context, rec AccountRecord, role string) (int64, error)
	// Update overwrites the profile fields of rec.ID and, when role is non-empty, replaces
	// every role of the account with role. Both changes commit together or not at all.
	Update(ctx context.Context, rec AccountRecord, role string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]AccountRecord, error)
	HasRole(ctx context.Context, role string) (bool, error)
	Ping(ctx context.Context) error
}

const pgSelectAccount = `
SELECT a.id, a.user_name, a.full_name, a.phone_number, a.status, a.password_hash, a.registered_at,
       COALESCE((SELECT r.role FROM account_roles r WHERE r.account_id = a.id ORDER BY r.id LIMIT 1), '')
FROM accounts a`

// PgxPool is the part of *pgxpool.Pool the Postgres repository uses.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PgAccountRepository implements AccountRepository using pgxpool.
type PgAccountRepository struct {
	db PgxPool
}

var _ AccountRepository = (*PgAccountRepository)(nil)

func NewPgAccountRepository(db PgxPool) *PgAccountRepository {
	return &PgAccountRepository{db: db}
}

func (r *PgAccountRepository) FindByName(ctx context.Context, userName string) (*AccountRecord, error) {
	return r.findOne(ctx, pgSelectAccount+` WHERE a.normalized_user_name=$1`, NormalizeUserName(userName))
}

func (r *PgAccountRepository) FindByID(ctx context.Context, id int64) (*AccountRecord, error) {
	return r.findOne(ctx, pgSelectAccount+` WHERE a.id=$1`, id)
}

func (r *PgAccountRepository) findOne(ctx context.Context, q string, arg any) (*AccountRecord, error) {
	var a AccountRecord
	err := r.db.QueryRow(ctx, q, arg).Scan(&a.ID, &a.UserName, &a.FullName, &a.PhoneNumber, &a.Status, &a.PasswordHash, &a.RegisteredAt, &a.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	a.RegisteredAt = a.RegisteredAt.UTC()
	return &a, nil
}

func (r *PgAccountRepository) Create(ctx context.Context, rec AccountRecord, role string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const q = `
INSERT INTO accounts (user_name, normalized_user_name, full_name, phone_number, status, password_hash, registered_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`
	var id int64
	if err := tx.QueryRow(ctx, q, rec.UserName, NormalizeUserName(rec.UserName), rec.FullName, rec.PhoneNumber, rec.Status, rec.PasswordHash, rec.RegisteredAt).Scan(&id); err != nil {
		return 0, mapPgError(err)
	}
	if role != "" {
		if _, err := tx.Exec(ctx, `INSERT INTO account_roles (account_id, role) VALUES ($1,$2)`, id, role); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgAccountRepository) Update(ctx context.Context, rec AccountRecord, role string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const q = `UPDATE accounts SET user_name=$1, normalized_user_name=$2, full_name=$3, phone_number=$4, status=$5 WHERE id=$6`
	tag, err := tx.Exec(ctx, q, rec.UserName, NormalizeUserName(rec.UserName), rec.FullName, rec.PhoneNumber, rec.Status, rec.ID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	if role != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM account_roles WHERE account_id=$1`, rec.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO account_roles (account_id, role) VALUES ($1,$2)`, rec.ID, role); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrAccountNotFound
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PgAccountRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	return err
}

// List returns all accounts ordered by id.
func (r *PgAccountRepository) List(ctx context.Context) ([]AccountRecord, error) {
	rows, err := r.db.Query(ctx, pgSelectAccount+` ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountRecord
	for rows.Next() {
		var a AccountRecord
		if err := rows.Scan(&a.ID, &a.UserName, &a.FullName, &a.PhoneNumber, &a.Status, &a.PasswordHash, &a.RegisteredAt, &a.Role); err != nil {
			return nil, err
		}
		a.RegisteredAt = a.RegisteredAt.UTC()
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *PgAccountRepository) HasRole(ctx context.Context, role string) (bool, error) {
	const q = `SELECT 1 FROM account_roles WHERE role=$1 LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q, role).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PgAccountRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateUserName, pgErr.ConstraintName)
	}
	return err
}
