// Package postgres implements the AccountStore on PostgreSQL via the pgx
// stdlib driver. The lockout transition runs as a single conditional UPDATE
// so concurrent failed attempts serialize on the row instead of racing a
// read-modify-write in the application.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/apsicologia/clinicauth"
)

const uniqueViolation = "23505"

// Store is an AccountStore backed by a *sql.DB.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle. Run [Migrate] first.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

var _ clinicauth.AccountStore = (*Store)(nil)

const accountColumns = `id, email, name, role, password_hash, active, deleted_at,
	clinician_id, patient_id,
	email_verified, verification_token_hash, verification_expires,
	reset_token_hash, reset_expires,
	two_factor_enabled, two_factor_secret, two_factor_last_step,
	failed_login_count, locked_until, last_login_at, last_login_ip,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*clinicauth.Account, error) {
	var (
		a           clinicauth.Account
		deletedAt   sql.NullTime
		verifyExp   sql.NullTime
		resetExp    sql.NullTime
		lockedUntil sql.NullTime
		lastLoginAt sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.Role, &a.PasswordHash, &a.Active, &deletedAt,
		&a.ClinicianID, &a.PatientID,
		&a.EmailVerified, &a.VerificationTokenHash, &verifyExp,
		&a.ResetTokenHash, &resetExp,
		&a.TwoFactorEnabled, &a.TwoFactorSecret, &a.TwoFactorLastStep,
		&a.FailedLoginCount, &lockedUntil, &lastLoginAt, &a.LastLoginIP,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.DeletedAt = nullableTime(deletedAt)
	a.VerificationExpires = nullableTime(verifyExp)
	a.ResetExpires = nullableTime(resetExp)
	a.LockedUntil = nullableTime(lockedUntil)
	a.LastLoginAt = nullableTime(lastLoginAt)

	return &a, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	out := t.Time
	return &out
}

func (s *Store) Create(ctx context.Context, a *clinicauth.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email, name, role, password_hash, active,
			clinician_id, patient_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Email, a.Name, a.Role, a.PasswordHash, a.Active,
		a.ClinicianID, a.PatientID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return clinicauth.ErrDuplicateEmail
		}
		return storeErr(err)
	}
	return nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*clinicauth.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE lower(email) = lower($1) AND deleted_at IS NULL`,
		email,
	)
	return s.account(row)
}

func (s *Store) GetByID(ctx context.Context, id string) (*clinicauth.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	return s.account(row)
}

func (s *Store) account(row *sql.Row) (*clinicauth.Account, error) {
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, clinicauth.ErrAccountNotFound
		}
		return nil, storeErr(err)
	}
	return a, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_expires = NULL,
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, hash,
	)
}

// RecordLoginFailure applies the lockout transition in one statement. The
// CASE arms mirror the state machine in the root package: an active lock is
// left untouched, an expired lock re-arms the counter at 1, and reaching the
// threshold sets the deadline.
func (s *Store) RecordLoginFailure(ctx context.Context, id string, now time.Time) (int, *time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET
			failed_login_count = CASE
				WHEN locked_until IS NOT NULL AND locked_until > $2 THEN failed_login_count
				WHEN locked_until IS NOT NULL THEN 1
				ELSE failed_login_count + 1
			END,
			locked_until = CASE
				WHEN locked_until IS NOT NULL AND locked_until > $2 THEN locked_until
				WHEN locked_until IS NOT NULL THEN NULL
				WHEN failed_login_count + 1 >= $3 THEN $4
				ELSE NULL
			END,
			updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING failed_login_count, locked_until`,
		id, now, clinicauth.LockoutThreshold, now.Add(clinicauth.LockoutDuration),
	)

	var (
		count       int
		lockedUntil sql.NullTime
	)
	if err := row.Scan(&count, &lockedUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, clinicauth.ErrAccountNotFound
		}
		return 0, nil, storeErr(err)
	}
	return count, nullableTime(lockedUntil), nil
}

func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time, origin string) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET failed_login_count = 0,
		    locked_until = NULL,
		    last_login_at = $2,
		    last_login_ip = $3,
		    updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`,
		id, at, origin,
	)
}

func (s *Store) EnableTwoFactor(ctx context.Context, id string, secret []byte, codeHashes [][32]byte) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET two_factor_enabled = true,
			    two_factor_secret = $2,
			    updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL`,
			id, secret,
		)
		if err != nil {
			return err
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return replaceCodes(ctx, tx, id, codeHashes)
	})
}

func (s *Store) DisableTwoFactor(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET two_factor_enabled = false,
			    two_factor_secret = NULL,
			    two_factor_last_step = 0,
			    updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL`,
			id,
		)
		if err != nil {
			return err
		}
		if err := requireRow(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM account_backup_codes WHERE account_id = $1`, id)
		return err
	})
}

func (s *Store) UpdateTwoFactorStep(ctx context.Context, id string, step int64) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET two_factor_last_step = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, step,
	)
}

// ConsumeBackupCode deletes the matching row; the delete doubles as the
// single-use guarantee because only one caller can remove it.
func (s *Store) ConsumeBackupCode(ctx context.Context, id string, codeHash [32]byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM account_backup_codes
		WHERE account_id = $1 AND code_hash = $2`,
		id, codeHash[:],
	)
	if err != nil {
		return false, storeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	return affected > 0, nil
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, id string, codeHashes [][32]byte) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceCodes(ctx, tx, id, codeHashes)
	})
}

func replaceCodes(ctx context.Context, tx *sql.Tx, id string, codeHashes [][32]byte) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM account_backup_codes WHERE account_id = $1`, id); err != nil {
		return err
	}
	for _, h := range codeHashes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO account_backup_codes (account_id, code_hash) VALUES ($1, $2)`,
			id, h[:],
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET active = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, active,
	)
}

func (s *Store) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`,
		id, at,
	)
}

func (s *Store) SetResetToken(ctx context.Context, id string, tokenHash [32]byte, expires time.Time) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET reset_token_hash = $2, reset_expires = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, tokenHash[:], expires,
	)
}

func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash [32]byte, now time.Time) (*clinicauth.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET reset_token_hash = NULL, reset_expires = NULL, updated_at = $2
		WHERE reset_token_hash = $1 AND reset_expires > $2 AND deleted_at IS NULL
		RETURNING `+accountColumns,
		tokenHash[:], now,
	)

	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, clinicauth.ErrResetInvalid
		}
		return nil, storeErr(err)
	}
	return a, nil
}

func (s *Store) SetVerificationToken(ctx context.Context, id string, tokenHash [32]byte, expires time.Time) error {
	return s.exec(ctx, `
		UPDATE accounts
		SET verification_token_hash = $2, verification_expires = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, tokenHash[:], expires,
	)
}

func (s *Store) ConsumeVerificationToken(ctx context.Context, tokenHash [32]byte, now time.Time) (*clinicauth.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET email_verified = true,
		    verification_token_hash = NULL,
		    verification_expires = NULL,
		    updated_at = $2
		WHERE verification_token_hash = $1 AND verification_expires > $2 AND deleted_at IS NULL
		RETURNING `+accountColumns,
		tokenHash[:], now,
	)

	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, clinicauth.ErrVerificationInvalid
		}
		return nil, storeErr(err)
	}
	return a, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storeErr(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, clinicauth.ErrAccountNotFound) {
			return err
		}
		return storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return clinicauth.ErrAccountNotFound
	}
	return nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", clinicauth.ErrStoreUnavailable, err)
}
