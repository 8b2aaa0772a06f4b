package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

var ErrDuplicateEmail = errors.New("email already exists")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, first_name, last_name, password_hash, confirmed, two_factor_enabled, version, created_at, updated_at`

func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	query := `
		INSERT INTO accounts (email, first_name, last_name, password_hash, confirmed, two_factor_enabled, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		account.Email,
		account.FirstName,
		account.LastName,
		account.PasswordHash,
		account.Confirmed,
		account.TwoFactorEnabled,
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	account.ID = uint64(id)
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts WHERE email = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *AccountRepository) FindByID(ctx context.Context, id uint64) (*entity.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByIDAndVersion returns nil when the account exists but its version has
// moved past the one supplied.
func (r *AccountRepository) FindByIDAndVersion(ctx context.Context, id uint64, version uint16) (*entity.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts WHERE id = ? AND version = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, version))
}

func (r *AccountRepository) MarkConfirmed(ctx context.Context, id uint64) (int64, error) {
	query := `UPDATE accounts SET confirmed = 1, updated_at = ? WHERE id = ? AND confirmed = 0`
	return r.exec(ctx, query, time.Now(), id)
}

// UpdatePassword swaps the hash and bumps the version in one statement, guarded
// by the version the caller read.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id uint64, expectedVersion uint16, passwordHash string) (int64, error) {
	query := `
		UPDATE accounts SET
			password_hash = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`
	return r.exec(ctx, query, passwordHash, time.Now(), id, expectedVersion)
}

func (r *AccountRepository) UpdateEmail(ctx context.Context, id uint64, expectedVersion uint16, email string) (int64, error) {
	query := `
		UPDATE accounts SET
			email = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`
	rows, err := r.exec(ctx, query, email, time.Now(), id, expectedVersion)
	if err != nil && isDuplicateEntry(err) {
		return 0, ErrDuplicateEmail
	}
	return rows, err
}

func (r *AccountRepository) UpdateTwoFactor(ctx context.Context, id uint64, enabled bool) (int64, error) {
	query := `UPDATE accounts SET two_factor_enabled = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, enabled, time.Now(), id)
}

func (r *AccountRepository) Delete(ctx context.Context, id uint64) (int64, error) {
	query := `DELETE FROM accounts WHERE id = ?`
	return r.exec(ctx, query, id)
}

func (r *AccountRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *AccountRepository) scanOne(row *sql.Row) (*entity.Account, error) {
	account := &entity.Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.FirstName,
		&account.LastName,
		&account.PasswordHash,
		&account.Confirmed,
		&account.TwoFactorEnabled,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
