package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

const (
	insertAccountQuery      = `(?s)INSERT INTO accounts \(email, first_name, last_name, password_hash, confirmed, two_factor_enabled, version, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?\)`
	findByEmailQuery        = `(?s)SELECT id, email, first_name, last_name, password_hash, confirmed, two_factor_enabled, version, created_at, updated_at\s+FROM accounts WHERE email = \?`
	findByIDQuery           = `(?s)SELECT id, email, first_name, last_name, password_hash, confirmed, two_factor_enabled, version, created_at, updated_at\s+FROM accounts WHERE id = \?`
	findByIDAndVersionQuery = `(?s)SELECT id, email, first_name, last_name, password_hash, confirmed, two_factor_enabled, version, created_at, updated_at\s+FROM accounts WHERE id = \? AND version = \?`
	markConfirmedQuery      = `(?s)UPDATE accounts SET confirmed = 1, updated_at = \? WHERE id = \? AND confirmed = 0`
	updatePasswordQuery     = `(?s)UPDATE accounts SET\s+password_hash = \?,\s+version = version \+ 1,\s+updated_at = \?\s+WHERE id = \? AND version = \?`
	updateEmailQuery        = `(?s)UPDATE accounts SET\s+email = \?,\s+version = version \+ 1,\s+updated_at = \?\s+WHERE id = \? AND version = \?`
	updateTwoFactorQuery    = `(?s)UPDATE accounts SET two_factor_enabled = \?, updated_at = \? WHERE id = \?`
	deleteAccountQuery      = `(?s)DELETE FROM accounts WHERE id = \?`
)

var accountColumns = []string{
	"id",
	"email",
	"first_name",
	"last_name",
	"password_hash",
	"confirmed",
	"two_factor_enabled",
	"version",
	"created_at",
	"updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

func TestAccountRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	now := time.Now()
	account := &entity.Account{
		Email:        "ann@example.com",
		FirstName:    "Ann",
		LastName:     "Lee",
		PasswordHash: "hash",
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(insertAccountQuery).
		WithArgs(
			account.Email,
			account.FirstName,
			account.LastName,
			account.PasswordHash,
			false,
			false,
			uint16(1),
			account.CreatedAt,
			account.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(7, 1))

	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if account.ID != 7 {
		t.Fatalf("expected ID 7, got %d", account.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_Create_DuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)

	mock.ExpectExec(insertAccountQuery).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &entity.Account{Email: "ann@example.com", Version: 1})
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByEmail(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	now := time.Now()

	mock.ExpectQuery(findByEmailQuery).
		WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(
			uint64(1), "ann@example.com", "Ann", "Lee", "hash", true, false, int64(3), now, now,
		))

	account, err := repo.FindByEmail(context.Background(), "ann@example.com")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if account == nil || account.ID != 1 || account.Version != 3 || !account.Confirmed {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.FullName() != "Ann Lee" {
		t.Fatalf("unexpected full name: %q", account.FullName())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByID_NotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)

	mock.ExpectQuery(findByIDQuery).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(accountColumns))

	account, err := repo.FindByID(context.Background(), 9)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if account != nil {
		t.Fatalf("expected nil account, got %+v", account)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByIDAndVersion(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)

	mock.ExpectQuery(findByIDAndVersionQuery).
		WithArgs(uint64(1), uint16(1)).
		WillReturnRows(sqlmock.NewRows(accountColumns))

	account, err := repo.FindByIDAndVersion(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if account != nil {
		t.Fatalf("expected stale version to yield nil, got %+v", account)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_MarkConfirmed(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)

	mock.ExpectExec(markConfirmedQuery).
		WithArgs(sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.MarkConfirmed(context.Background(), 1)
	if err != nil {
		t.Fatalf("mark confirmed failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected 0 rows for already confirmed account, got %d", rows)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdatePassword_BumpsVersionConditionally(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)

	mock.ExpectExec(updatePasswordQuery).
		WithArgs("new-hash", sqlmock.AnyArg(), uint64(1), uint16(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updatePasswordQuery).
		WithArgs("other-hash", sqlmock.AnyArg(), uint64(1), uint16(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.UpdatePassword(context.Background(), 1, 1, "new-hash")
	if err != nil || rows != 1 {
		t.Fatalf("expected 1 row, got %d (%v)", rows, err)
	}

	rows, err = repo.UpdatePassword(context.Background(), 1, 1, "other-hash")
	if err != nil || rows != 0 {
		t.Fatalf("expected stale version to update 0 rows, got %d (%v)", rows, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdateEmail_Duplicate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)

	mock.ExpectExec(updateEmailQuery).
		WithArgs("taken@example.com", sqlmock.AnyArg(), uint64(1), uint16(2)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := repo.UpdateEmail(context.Background(), 1, 2, "taken@example.com")
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdateTwoFactorAndDelete(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)

	mock.ExpectExec(updateTwoFactorQuery).
		WithArgs(true, sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteAccountQuery).
		WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if rows, err := repo.UpdateTwoFactor(context.Background(), 1, true); err != nil || rows != 1 {
		t.Fatalf("update two factor failed: %d %v", rows, err)
	}
	if rows, err := repo.Delete(context.Background(), 1); err != nil || rows != 1 {
		t.Fatalf("delete failed: %d %v", rows, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
