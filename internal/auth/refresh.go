// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
)

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued in its place.
//
// The signature check only filters obvious forgeries. Consuming the store
// record decides validity, so a token already rotated away fails even while
// its signature is still good. Of two racing rotations of one token, exactly
// one consumes the record; the other sees InvalidToken.
func (m *Manager) Refresh(ctx context.Context, presented string) (pair *TokenPair, err error) {
	ctx, done := m.observe(ctx, OpRefresh)
	defer func() { done(&err) }()

	if presented == "" {
		return nil, missingToken(OpRefresh)
	}

	claims, err := m.codec.Decode(TokenTypeRefresh, presented)
	if err != nil {
		reason := ReasonClaims
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			reason = decodeErr.Reason
		}
		m.events.Auth(ctx, "refresh rejected: token failed verification", slog.String("reason", string(reason)))
		return nil, invalidToken(OpRefresh, reason)
	}
	accountID, err := claims.AccountID()
	if err != nil {
		return nil, invalidToken(OpRefresh, ReasonClaims)
	}

	now := m.now()
	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		record, err := m.refreshTokens.Consume(ctx, HashToken(presented))
		if err != nil {
			if isNotFound(err) {
				return invalidToken(OpRefresh, ReasonNotStored)
			}
			return err
		}
		if record.AccountID != accountID {
			return invalidToken(OpRefresh, ReasonClaims)
		}
		if record.IsExpiredAt(now) {
			return invalidToken(OpRefresh, ReasonExpired)
		}

		account, err := m.accounts.GetByID(ctx, accountID)
		if err != nil {
			if isNotFound(err) {
				return invalidToken(OpRefresh, ReasonNotStored)
			}
			return err
		}
		if !account.CanLogin() {
			return invalidToken(OpRefresh, ReasonClaims)
		}

		if pair, err = m.issuePair(account); err != nil {
			return err
		}
		if err := m.replaceRefreshToken(ctx, accountID, pair, now); err != nil {
			// Another rotation for this account inserted first.
			if errors.Is(err, ErrDuplicate) {
				return invalidToken(OpRefresh, ReasonNotStored)
			}
			return err
		}
		return m.sessions.TouchByAccount(ctx, accountID, now, pair.RefreshExpiresAt)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			m.events.Auth(ctx, "refresh rejected: token not honored", slog.String("account_id", accountID.String()))
			return nil, err
		}
		return nil, m.storeFailure(ctx, OpRefresh, "rotate refresh token", err)
	}

	m.events.Auth(ctx, "refresh token rotated", slog.String("account_id", accountID.String()))
	return pair, nil
}

// revokeAll deletes every refresh token and session of an account.
func (m *Manager) revokeAll(ctx context.Context, accountID ulid.ULID) error {
	if err := m.refreshTokens.DeleteByAccount(ctx, accountID); err != nil {
		return err
	}
	return m.sessions.DeleteByAccount(ctx, accountID)
}
