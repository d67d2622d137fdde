// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// ForgotPassword stores a single-use reset token on the account and mails it.
//
// Unlike Login, an unknown email is reported as NotFound. A delivery failure
// is reported as EmailDeliveryFailed; the stored token stays valid.
func (m *Manager) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, done := m.observe(ctx, OpForgotPassword)
	defer func() { done(&err) }()

	account, err := m.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			m.events.Auth(ctx, "password reset rejected: unknown email")
			return oops.Code(CodeNotFound).With("operation", OpForgotPassword).Wrap(ErrAccountNotFound)
		}
		return m.storeFailure(ctx, OpForgotPassword, "get account by email", err)
	}

	token, tokenHash, err := GenerateSecretToken()
	if err != nil {
		return oops.Code(CodeStoreError).With("operation", OpForgotPassword).With("step", "generate reset token").Wrap(err)
	}

	now := m.now()
	if err = m.accounts.SetResetToken(ctx, account.ID, tokenHash, now.Add(m.resetTTL), now); err != nil {
		return m.storeFailure(ctx, OpForgotPassword, "store reset token", err)
	}

	m.events.Audit(ctx, "password reset requested", slog.String("account_id", account.ID.String()))

	if sendErr := m.notifier.Send(ctx, PasswordResetMessage(m.baseURL, account.Email, token, m.resetTTL)); sendErr != nil {
		return m.deliveryFailure(ctx, OpForgotPassword, account.ID, sendErr)
	}
	return nil
}

// ResetPassword replaces the password of the account holding token, then
// revokes every refresh token and session of that account.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, done := m.observe(ctx, OpResetPassword)
	defer func() { done(&err) }()

	if token == "" || newPassword == "" {
		return oops.Code(CodeValidation).With("operation", OpResetPassword).Wrap(ErrValidation)
	}

	tokenHash := HashToken(token)
	account, err := m.accounts.GetByResetTokenHash(ctx, tokenHash)
	if err != nil {
		if isNotFound(err) {
			m.events.Auth(ctx, "password reset rejected: unknown token")
			return invalidToken(OpResetPassword, ReasonNotStored)
		}
		return m.storeFailure(ctx, OpResetPassword, "get account by reset token", err)
	}

	now := m.now()
	if account.ResetExpiredAt(now) {
		m.events.Auth(ctx, "password reset rejected: token expired", slog.String("account_id", account.ID.String()))
		return invalidToken(OpResetPassword, ReasonExpired)
	}

	same, err := m.hasher.Verify(newPassword, account.PasswordHash)
	if err != nil {
		return m.storeFailure(ctx, OpResetPassword, "verify current password", err)
	}
	if same {
		return oops.Code(CodePasswordUnchanged).With("operation", OpResetPassword).Wrap(ErrPasswordUnchanged)
	}

	newHash, err := m.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, ErrEmptyPassword) {
			return oops.Code(CodeValidation).With("operation", OpResetPassword).Wrap(ErrValidation)
		}
		return oops.Code(CodeStoreError).With("operation", OpResetPassword).With("step", "hash password").Wrap(err)
	}

	// The read above only screens the request. The token is consumed by a
	// conditional update, so of two concurrent resets exactly one wins.
	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		consumed, err := m.accounts.ConsumeResetToken(ctx, tokenHash, newHash, now)
		if err != nil {
			return err
		}
		return m.revokeAll(ctx, consumed.ID)
	})
	if err != nil {
		if isNotFound(err) {
			m.events.Auth(ctx, "password reset rejected: token already used", slog.String("account_id", account.ID.String()))
			return invalidToken(OpResetPassword, ReasonNotStored)
		}
		return m.storeFailure(ctx, OpResetPassword, "complete reset", err)
	}

	m.events.Audit(ctx, "password reset completed", slog.String("account_id", account.ID.String()))
	return nil
}
