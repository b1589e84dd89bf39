package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSelectAccount = `
SELECT a.id, a.user_name, a.full_name, a.phone_number, a.status, a.password_hash, a.registered_at,
       COALESCE((SELECT r.role FROM account_roles r WHERE r.account_id = a.id ORDER BY r.id LIMIT 1), '')
FROM accounts a`

// SQLiteAccountRepository implements AccountRepository on database/sql with modernc sqlite.
// registered_at is stored as unix microseconds.
type SQLiteAccountRepository struct {
	db        *sql.DB
	writeLock sync.Mutex // sqlite does not support concurrent writers
}

var _ AccountRepository = (*SQLiteAccountRepository)(nil)

func NewSQLiteAccountRepository(db *sql.DB) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAccount(row rowScanner) (*AccountRecord, error) {
	var (
		a          AccountRecord
		registered int64
	)
	if err := row.Scan(&a.ID, &a.UserName, &a.FullName, &a.PhoneNumber, &a.Status, &a.PasswordHash, &registered, &a.Role); err != nil {
		return nil, err
	}
	a.RegisteredAt = time.UnixMicro(registered).UTC()
	return &a, nil
}

func (r *SQLiteAccountRepository) FindByName(ctx context.Context, userName string) (*AccountRecord, error) {
	return r.findOne(ctx, sqliteSelectAccount+` WHERE a.normalized_user_name=?`, NormalizeUserName(userName))
}

func (r *SQLiteAccountRepository) FindByID(ctx context.Context, id int64) (*AccountRecord, error) {
	return r.findOne(ctx, sqliteSelectAccount+` WHERE a.id=?`, id)
}

func (r *SQLiteAccountRepository) findOne(ctx context.Context, q string, arg any) (*AccountRecord, error) {
	a, err := scanSQLiteAccount(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return a, nil
}

func (r *SQLiteAccountRepository) Create(ctx context.Context, rec AccountRecord, role string) (int64, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
INSERT INTO accounts (user_name, normalized_user_name, full_name, phone_number, status, password_hash, registered_at)
VALUES (?,?,?,?,?,?,?)`,
		rec.UserName, NormalizeUserName(rec.UserName), rec.FullName, rec.PhoneNumber, rec.Status, rec.PasswordHash, rec.RegisteredAt.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", mapSQLiteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	if role != "" {
		if _, err := tx.ExecContext(ctx, `INSERT INTO account_roles (account_id, role) VALUES (?,?)`, id, role); err != nil {
			return 0, fmt.Errorf("insert role: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (r *SQLiteAccountRepository) Update(ctx context.Context, rec AccountRecord, role string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET user_name=?, normalized_user_name=?, full_name=?, phone_number=?, status=? WHERE id=?`,
		rec.UserName, NormalizeUserName(rec.UserName), rec.FullName, rec.PhoneNumber, rec.Status, rec.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", mapSQLiteError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}

	if role != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM account_roles WHERE account_id=?`, rec.ID); err != nil {
			return fmt.Errorf("delete roles: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO account_roles (account_id, role) VALUES (?,?)`, rec.ID, role); err != nil {
			if isSQLiteConstraint(err, "FOREIGN KEY constraint failed", sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("insert role: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteAccountRepository) Delete(ctx context.Context, id int64) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM account_roles WHERE account_id=?`, id); err != nil {
		return fmt.Errorf("delete roles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteAccountRepository) List(ctx context.Context) ([]AccountRecord, error) {
	rows, err := r.db.QueryContext(ctx, sqliteSelectAccount+` ORDER BY a.id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var items []AccountRecord
	for rows.Next() {
		a, err := scanSQLiteAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

func (r *SQLiteAccountRepository) HasRole(ctx context.Context, role string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM account_roles WHERE role=? LIMIT 1`, role).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *SQLiteAccountRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func mapSQLiteError(err error) error {
	if isSQLiteConstraint(err, "UNIQUE constraint failed", sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
		return errors.Join(ErrDuplicateUserName, err)
	}
	return err
}

// isSQLiteConstraint matches extended result codes, falling back to the message for
// builds that only report the primary SQLITE_CONSTRAINT code.
func isSQLiteConstraint(err error, msg string, codes ...int) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		for _, c := range codes {
			if liteErr.Code() == c {
				return true
			}
		}
	}
	return strings.Contains(err.Error(), msg)
}
