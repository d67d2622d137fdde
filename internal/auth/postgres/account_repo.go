// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

const accountColumns = `id, email, password_hash, name, tenant_id, status, email_verified,
	verification_token_hash, reset_token_hash, reset_token_expiry, created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, a *auth.Account) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		a.ID.String(),
		a.Email,
		a.PasswordHash,
		a.Name,
		a.TenantID,
		string(a.Status),
		a.EmailVerified,
		nullable(a.VerificationTokenHash),
		nullable(a.ResetTokenHash),
		a.ResetTokenExpiry,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("operation", "insert account").
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("account_id", a.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	return r.getBy(ctx, "id", id.String(), "get account by id")
}

// GetByEmail retrieves an account by normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return r.getBy(ctx, "email", email, "get account by email")
}

// GetByResetTokenHash retrieves the account holding a reset token.
func (r *AccountRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*auth.Account, error) {
	return r.getBy(ctx, "reset_token_hash", tokenHash, "get account by reset token")
}

// getBy looks an account up by one unique column. column is never user input.
func (r *AccountRepository) getBy(ctx context.Context, column, value, operation string) (*auth.Account, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE `+column+` = $1
	`, value)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("operation", operation).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", operation).
			Wrap(err)
	}
	return account, nil
}

// ConsumeVerificationToken activates the account holding tokenHash and clears
// the token in one statement, so a token can activate an account only once.
func (r *AccountRepository) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*auth.Account, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE accounts SET
			status = $2,
			email_verified = TRUE,
			verification_token_hash = NULL,
			updated_at = $3
		WHERE verification_token_hash = $1
		RETURNING `+accountColumns,
		tokenHash, string(auth.StatusActive), now,
	)
	return returning(row, "consume verification token")
}

// SetResetToken stores a pending password reset, replacing any earlier one.
// No other column is written.
func (r *AccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt, now time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE accounts SET
			reset_token_hash = $2,
			reset_token_expiry = $3,
			updated_at = $4
		WHERE id = $1
	`, id.String(), tokenHash, expiresAt, now)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "set reset token").
			With("account_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("operation", "set reset token").
			With("account_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeResetToken replaces the password of the account holding an unexpired
// tokenHash and clears the token in one statement. Concurrent callers with the
// same token serialize on the row lock; all but the first see ErrNotFound.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Account, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE accounts SET
			password_hash = $2,
			reset_token_hash = NULL,
			reset_token_expiry = NULL,
			updated_at = $3
		WHERE reset_token_hash = $1 AND reset_token_expiry >= $3
		RETURNING `+accountColumns,
		tokenHash, passwordHash, now,
	)
	return returning(row, "consume reset token")
}

// UpdatePasswordHash swaps the password hash only while it still equals
// oldHash. Returns ErrNotFound when the account is gone or the hash changed.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, oldHash, newHash string, now time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE accounts SET
			password_hash = $3,
			updated_at = $4
		WHERE id = $1 AND password_hash = $2
	`, id.String(), oldHash, newHash, now)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password hash").
			With("account_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("operation", "update password hash").
			With("account_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// returning scans the row of an UPDATE ... RETURNING. No row means the
// condition did not match.
func returning(row pgx.Row, operation string) (*auth.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("operation", operation).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", operation).
			Wrap(err)
	}
	return account, nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr            string
		a                auth.Account
		status           string
		verificationHash *string
		resetHash        *string
		resetTokenExpiry *time.Time
	)

	err := row.Scan(&idStr, &a.Email, &a.PasswordHash, &a.Name, &a.TenantID, &status, &a.EmailVerified,
		&verificationHash, &resetHash, &resetTokenExpiry, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	a.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}
	a.Status = auth.AccountStatus(status)
	if !a.Status.Valid() {
		return nil, oops.Code("ACCOUNT_INVALID_STATUS").
			With("id", idStr).
			Errorf("unknown account status %q", status)
	}
	a.VerificationTokenHash = deref(verificationHash)
	a.ResetTokenHash = deref(resetHash)
	a.ResetTokenExpiry = resetTokenExpiry
	return &a, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
