// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

// Account lifecycle states.
const (
	StatusPendingVerification AccountStatus = "PENDING_VERIFICATION"
	StatusActive              AccountStatus = "ACTIVE"
	StatusSuspended           AccountStatus = "SUSPENDED"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusPendingVerification, StatusActive, StatusSuspended:
		return true
	}
	return false
}

// Account is an identity record.
type Account struct {
	ID            ulid.ULID
	Email         string
	PasswordHash  string
	Name          string
	TenantID      string
	Status        AccountStatus
	EmailVerified bool

	// VerificationTokenHash is the SHA-256 of the outstanding verification
	// token, or empty once the account has been verified.
	VerificationTokenHash string

	// ResetTokenHash and ResetTokenExpiry are set together by a password
	// reset request and cleared together when the reset completes.
	ResetTokenHash   string
	ResetTokenExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates a validated Account in PENDING_VERIFICATION.
// The email is normalized before it is stored.
func NewAccount(email, passwordHash, name, tenantID, verificationTokenHash string, now time.Time) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if tenantID == "" {
		return nil, oops.Code("ACCOUNT_INVALID_TENANT").Errorf("tenant ID cannot be empty")
	}
	if verificationTokenHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_TOKEN").Errorf("verification token hash cannot be empty")
	}

	return &Account{
		ID:                    ulid.Make(),
		Email:                 email,
		PasswordHash:          passwordHash,
		Name:                  strings.TrimSpace(name),
		TenantID:              tenantID,
		Status:                StatusPendingVerification,
		VerificationTokenHash: verificationTokenHash,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CanLogin reports whether the account may be issued credentials.
func (a *Account) CanLogin() bool {
	return a.Status == StatusActive && a.EmailVerified
}

// MarkVerified activates the account and consumes its verification token.
func (a *Account) MarkVerified(now time.Time) {
	a.Status = StatusActive
	a.EmailVerified = true
	a.VerificationTokenHash = ""
	a.UpdatedAt = now
}

// SetResetToken stores a pending password reset.
func (a *Account) SetResetToken(tokenHash string, expiresAt, now time.Time) {
	a.ResetTokenHash = tokenHash
	a.ResetTokenExpiry = &expiresAt
	a.UpdatedAt = now
}

// ResetExpiredAt reports whether the pending reset is unusable at t.
// An account without a pending reset is always expired.
func (a *Account) ResetExpiredAt(t time.Time) bool {
	return a.ResetTokenHash == "" || a.ResetTokenExpiry == nil || t.After(*a.ResetTokenExpiry)
}

// CompleteReset replaces the password hash and consumes the reset token.
func (a *Account) CompleteReset(passwordHash string, now time.Time) {
	a.PasswordHash = passwordHash
	a.ResetTokenHash = ""
	a.ResetTokenExpiry = nil
	a.UpdatedAt = now
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByResetTokenHash retrieves the account holding a reset token.
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*Account, error)

	// ConsumeVerificationToken atomically activates the account holding
	// tokenHash and clears the token. Returns ErrNotFound if no account
	// holds it.
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*Account, error)

	// SetResetToken stores a pending reset on the account. Only the reset
	// fields are written.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt, now time.Time) error

	// ConsumeResetToken atomically replaces the password of the account
	// holding an unexpired tokenHash and clears the token. Returns
	// ErrNotFound if the token is unknown, expired or already used.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*Account, error)

	// UpdatePasswordHash replaces the password hash only if it still equals
	// oldHash. Returns ErrNotFound otherwise.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, oldHash, newHash string, now time.Time) error
}
