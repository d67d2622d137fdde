// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

const sessionColumns = `id, account_id, user_agent, ip_address, expires_at, created_at, last_seen_at`

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, s *auth.Session) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		s.ID.String(),
		s.AccountID.String(),
		s.UserAgent,
		s.IPAddress,
		s.ExpiresAt,
		s.CreatedAt,
		s.LastSeenAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("account_id", s.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByAccount retrieves all sessions for an account, newest first.
func (r *SessionRepository) GetByAccount(ctx context.Context, accountID ulid.ULID) ([]*auth.Session, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID.String())
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_ACCOUNT_FAILED").
			With("operation", "get sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}

	return sessions, nil
}

// TouchByAccount slides the expiry of every session of an account.
func (r *SessionRepository) TouchByAccount(ctx context.Context, accountID ulid.ULID, lastSeen, expiresAt time.Time) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE sessions SET last_seen_at = $2, expires_at = $3
		WHERE account_id = $1
	`, accountID.String(), lastSeen, expiresAt)
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").
			With("operation", "touch sessions").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteByAccount removes all sessions for an account.
func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM sessions WHERE account_id = $1
	`, accountID.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_ACCOUNT_FAILED").
			With("operation", "delete sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all sessions expired at now and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanSession(rows pgx.Rows) (*auth.Session, error) {
	var (
		idStr        string
		accountIDStr string
		s            auth.Session
	)

	if err := rows.Scan(&idStr, &accountIDStr, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.CreatedAt, &s.LastSeenAt); err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session row").
			Wrap(err)
	}

	var err error
	if s.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	if s.AccountID, err = ulid.Parse(accountIDStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}
	return &s, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
