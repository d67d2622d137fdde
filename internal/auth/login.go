// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// LoginInput is a validated login request. UserAgent and IPAddress are
// recorded on the session and may be empty.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// TokenPair is the result of a successful login or rotation. The refresh
// token belongs in a cookie and never in a response body.
type TokenPair struct {
	AccessToken      string
	AccessClaims     *Claims
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Login verifies credentials and issues a fresh token pair, replacing any
// refresh token the account already held.
//
// Unknown emails and wrong passwords fail identically and take the same
// time. Verification status is checked only after the password matches.
func (m *Manager) Login(ctx context.Context, in LoginInput) (pair *TokenPair, err error) {
	ctx, done := m.observe(ctx, OpLogin)
	defer func() { done(&err) }()

	account, lookupErr := m.accounts.GetByEmail(ctx, NormalizeEmail(in.Email))

	var targetHash string
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
	case isNotFound(lookupErr):
		account = nil
		targetHash = m.dummyHash
	default:
		return nil, m.storeFailure(ctx, OpLogin, "get account by email", lookupErr)
	}

	valid, verifyErr := m.hasher.Verify(in.Password, targetHash)
	if account != nil && verifyErr != nil {
		return nil, m.storeFailure(ctx, OpLogin, "verify password", verifyErr)
	}
	if account == nil || !valid {
		m.events.Auth(ctx, "login rejected: invalid credentials")
		return nil, oops.Code(CodeInvalidCredentials).With("operation", OpLogin).Wrap(ErrInvalidCredentials)
	}

	if !account.CanLogin() {
		m.events.Auth(ctx, "login rejected: email not verified",
			slog.String("account_id", account.ID.String()),
			slog.String("status", string(account.Status)),
		)
		return nil, oops.Code(CodeEmailNotVerified).
			With("operation", OpLogin).
			With("status", string(account.Status)).
			Wrap(ErrEmailNotVerified)
	}

	if m.hasher.NeedsUpgrade(account.PasswordHash) {
		m.upgradeHash(ctx, account, in.Password)
	}

	pair, err = m.issuePair(account)
	if err != nil {
		return nil, err
	}

	now := m.now()
	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := m.replaceRefreshToken(ctx, account.ID, pair, now); err != nil {
			return err
		}
		session, err := NewSession(account.ID, in.UserAgent, in.IPAddress, pair.RefreshExpiresAt, now)
		if err != nil {
			return err
		}
		return m.sessions.Create(ctx, session)
	})
	if err != nil {
		// A concurrent login for the same account won the insert. The caller
		// may retry; the manager does not.
		return nil, m.storeFailure(ctx, OpLogin, "persist refresh token", err)
	}

	m.events.Auth(ctx, "login succeeded", slog.String("account_id", account.ID.String()))
	return pair, nil
}

// upgradeHash rehashes the password with the configured algorithm.
// Failures are logged and do not fail the login.
func (m *Manager) upgradeHash(ctx context.Context, account *Account, password string) {
	newHash, err := m.hasher.Hash(password)
	if err != nil {
		m.events.Error(ctx, "password hash upgrade failed", err, slog.String("account_id", account.ID.String()))
		return
	}
	err = m.accounts.UpdatePasswordHash(ctx, account.ID, account.PasswordHash, newHash, m.now())
	if isNotFound(err) {
		// The password changed since it was read; the newer hash stands.
		m.events.Auth(ctx, "password hash upgrade skipped: password changed", slog.String("account_id", account.ID.String()))
		return
	}
	if err != nil {
		m.events.Error(ctx, "password hash upgrade failed", err, slog.String("account_id", account.ID.String()))
		return
	}
	account.PasswordHash = newHash
	m.events.Audit(ctx, "password hash upgraded", slog.String("account_id", account.ID.String()))
}

// issuePair signs a new access and refresh token for account.
func (m *Manager) issuePair(account *Account) (*TokenPair, error) {
	access, accessClaims, err := m.codec.Issue(TokenTypeAccess, account.ID, account.Email)
	if err != nil {
		return nil, oops.Code(CodeStoreError).With("step", "issue access token").Wrap(err)
	}
	refresh, refreshClaims, err := m.codec.Issue(TokenTypeRefresh, account.ID, "")
	if err != nil {
		return nil, oops.Code(CodeStoreError).With("step", "issue refresh token").Wrap(err)
	}
	return &TokenPair{
		AccessToken:      access,
		AccessClaims:     accessClaims,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// replaceRefreshToken deletes every refresh token of the account and stores
// the one in pair. It must run inside a transaction.
func (m *Manager) replaceRefreshToken(ctx context.Context, accountID ulid.ULID, pair *TokenPair, now time.Time) error {
	if err := m.refreshTokens.DeleteByAccount(ctx, accountID); err != nil {
		return err
	}
	record, err := NewRefreshToken(accountID, HashToken(pair.RefreshToken), m.codec.RefreshTTL(), now)
	if err != nil {
		return err
	}
	return m.refreshTokens.Create(ctx, record)
}

// Logout revokes every refresh token and session of the account that owns
// the presented refresh token. Only the store record is consulted, so an
// expired but still recorded token can be logged out.
func (m *Manager) Logout(ctx context.Context, presented string) (err error) {
	ctx, done := m.observe(ctx, OpLogout)
	defer func() { done(&err) }()

	if presented == "" {
		return missingToken(OpLogout)
	}

	record, err := m.refreshTokens.GetByTokenHash(ctx, HashToken(presented))
	if err != nil {
		if isNotFound(err) {
			m.events.Auth(ctx, "logout rejected: unknown refresh token")
			return invalidToken(OpLogout, ReasonNotStored)
		}
		return m.storeFailure(ctx, OpLogout, "get refresh token", err)
	}

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		return m.revokeAll(ctx, record.AccountID)
	})
	if err != nil {
		return m.storeFailure(ctx, OpLogout, "revoke credentials", err)
	}

	m.events.Auth(ctx, "logout succeeded", slog.String("account_id", record.AccountID.String()))
	return nil
}

// Authenticate verifies a bearer access token and returns its claims.
func (m *Manager) Authenticate(ctx context.Context, raw string) (claims *Claims, err error) {
	_, done := m.observe(ctx, OpAuthenticate)
	defer func() { done(&err) }()

	if raw == "" {
		return nil, missingToken(OpAuthenticate)
	}
	claims, err = m.codec.Decode(TokenTypeAccess, raw)
	if err != nil {
		var decodeErr *DecodeError
		reason := ReasonClaims
		if errors.As(err, &decodeErr) {
			reason = decodeErr.Reason
		}
		return nil, invalidToken(OpAuthenticate, reason)
	}
	return claims, nil
}
