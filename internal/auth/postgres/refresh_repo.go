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

const refreshColumns = `id, account_id, token_hash, ttl_seconds, created_at`

// RefreshTokenRepository implements auth.RefreshTokenRepository using PostgreSQL.
// The unique index on refresh_tokens(account_id) limits each account to one row.
type RefreshTokenRepository struct {
	pool Pool
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(pool Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Create stores a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *auth.RefreshToken) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO refresh_tokens (`+refreshColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`,
		t.ID.String(),
		t.AccountID.String(),
		t.TokenHash,
		t.TTLSeconds,
		t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("REFRESH_DUPLICATE").
				With("operation", "insert refresh token").
				With("account_id", t.AccountID.String()).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("REFRESH_CREATE_FAILED").
			With("operation", "insert refresh token").
			With("account_id", t.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a record by token hash.
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+refreshColumns+`
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash)

	token, err := scanRefreshToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_GET_FAILED").
			With("operation", "get refresh token by hash").
			Wrap(err)
	}
	return token, nil
}

// Consume deletes the record with the given hash and returns it. Of two
// concurrent calls for one hash, the second blocks on the row lock and then
// finds nothing.
func (r *RefreshTokenRepository) Consume(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
		RETURNING `+refreshColumns,
		tokenHash)

	token, err := scanRefreshToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_CONSUME_FAILED").
			With("operation", "consume refresh token").
			Wrap(err)
	}
	return token, nil
}

// DeleteByAccount removes every record for an account.
func (r *RefreshTokenRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM refresh_tokens WHERE account_id = $1
	`, accountID.String())
	if err != nil {
		return oops.Code("REFRESH_DELETE_BY_ACCOUNT_FAILED").
			With("operation", "delete refresh tokens by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	// Note: No ErrNotFound if no rows deleted - that's a valid state
	return nil
}

// CountByAccount returns the number of records held for an account.
func (r *RefreshTokenRepository) CountByAccount(ctx context.Context, accountID ulid.ULID) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM refresh_tokens WHERE account_id = $1
	`, accountID.String()).Scan(&n)
	if err != nil {
		return 0, oops.Code("REFRESH_COUNT_FAILED").
			With("operation", "count refresh tokens").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return n, nil
}

// DeleteExpired removes every record past its TTL and returns the count.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE created_at + make_interval(secs => ttl_seconds) < $1
	`, now)
	if err != nil {
		return 0, oops.Code("REFRESH_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired refresh tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanRefreshToken scans a single row into a RefreshToken.
// Callers are responsible for handling pgx.ErrNoRows.
func scanRefreshToken(row pgx.Row) (*auth.RefreshToken, error) {
	var (
		idStr        string
		accountIDStr string
		t            auth.RefreshToken
	)

	err := row.Scan(&idStr, &accountIDStr, &t.TokenHash, &t.TTLSeconds, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("REFRESH_SCAN_FAILED").
			With("operation", "scan refresh token").
			Wrap(err)
	}

	if t.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("REFRESH_INVALID_ID").
			With("operation", "parse refresh token id").
			With("id", idStr).
			Wrap(err)
	}
	if t.AccountID, err = ulid.Parse(accountIDStr); err != nil {
		return nil, oops.Code("REFRESH_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}
	return &t, nil
}

// Compile-time interface check.
var _ auth.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
