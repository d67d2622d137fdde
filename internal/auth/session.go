// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session is server-side sign-in state recorded at login. Sessions are
// destroyed wholesale on logout and on password reset.
type Session struct {
	ID         ulid.ULID
	AccountID  ulid.ULID
	UserAgent  string
	IPAddress  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// NewSession creates a validated Session instance.
// UserAgent and IPAddress are optional and may be empty.
func NewSession(accountID ulid.ULID, userAgent, ipAddress string, expiresAt, now time.Time) (*Session, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &Session{
		ID:         ulid.Make(),
		AccountID:  accountID,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByAccount retrieves all sessions for an account.
	GetByAccount(ctx context.Context, accountID ulid.ULID) ([]*Session, error)

	// TouchByAccount sets LastSeenAt and ExpiresAt on every session of an account.
	TouchByAccount(ctx context.Context, accountID ulid.ULID, lastSeen, expiresAt time.Time) error

	// DeleteByAccount removes all sessions for an account.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) error

	// DeleteExpired removes all sessions expired at now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
