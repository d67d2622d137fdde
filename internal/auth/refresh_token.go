// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshToken is the persisted record of an account's live refresh token.
// Only the SHA-256 of the signed token is stored.
type RefreshToken struct {
	ID         ulid.ULID
	AccountID  ulid.ULID
	TokenHash  string
	TTLSeconds int64
	CreatedAt  time.Time
}

// NewRefreshToken creates a validated RefreshToken record.
func NewRefreshToken(accountID ulid.ULID, tokenHash string, ttl time.Duration, now time.Time) (*RefreshToken, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("REFRESH_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("REFRESH_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("REFRESH_INVALID_TTL").Errorf("ttl must be positive, got %s", ttl)
	}

	return &RefreshToken{
		ID:         ulid.Make(),
		AccountID:  accountID,
		TokenHash:  tokenHash,
		TTLSeconds: int64(ttl / time.Second),
		CreatedAt:  now,
	}, nil
}

// ExpiresAt returns the instant the record stops being honored.
func (t *RefreshToken) ExpiresAt() time.Time {
	return t.CreatedAt.Add(time.Duration(t.TTLSeconds) * time.Second)
}

// IsExpiredAt returns true if the record would be expired at the given time.
func (t *RefreshToken) IsExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt())
}

// RefreshTokenRepository manages refresh token persistence.
//
// Implementations enforce at most one record per account at the storage
// level, so a racing insert for the same account fails with ErrDuplicate.
type RefreshTokenRepository interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, token *RefreshToken) error

	// GetByTokenHash retrieves a record by token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Consume deletes the record with the given hash and returns it.
	// Returns ErrNotFound if no such record exists, which is how a
	// rotated-away or concurrently consumed token is detected.
	Consume(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// DeleteByAccount removes every record for an account.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) error

	// CountByAccount returns the number of records held for an account.
	CountByAccount(ctx context.Context, accountID ulid.ULID) (int, error)

	// DeleteExpired removes every record past its TTL and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
