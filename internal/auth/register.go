// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RegisterInput is a validated registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register creates an account in PENDING_VERIFICATION and mails a
// verification link.
//
// The account is not rolled back when delivery fails: the returned ID is
// valid alongside an EmailDeliveryFailed error.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (id ulid.ULID, err error) {
	ctx, done := m.observe(ctx, OpRegister)
	defer func() { done(&err) }()

	email := NormalizeEmail(in.Email)

	_, err = m.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		m.events.Auth(ctx, "registration rejected: email exists")
		return ulid.ULID{}, oops.Code(CodeConflict).With("operation", OpRegister).Wrap(ErrConflict)
	case !isNotFound(err):
		return ulid.ULID{}, m.storeFailure(ctx, OpRegister, "get account by email", err)
	}

	passwordHash, err := m.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, ErrEmptyPassword) {
			return ulid.ULID{}, oops.Code(CodeValidation).With("operation", OpRegister).Wrap(ErrValidation)
		}
		return ulid.ULID{}, oops.Code(CodeStoreError).With("operation", OpRegister).With("step", "hash password").Wrap(err)
	}

	token, tokenHash, err := GenerateSecretToken()
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeStoreError).With("operation", OpRegister).With("step", "generate verification token").Wrap(err)
	}

	account, err := NewAccount(email, passwordHash, in.Name, m.tenantID, tokenHash, m.now())
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeValidation).With("operation", OpRegister).Wrap(errors.Join(ErrValidation, err))
	}

	if err = m.accounts.Create(ctx, account); err != nil {
		// Lost a race with a concurrent registration for the same email.
		if errors.Is(err, ErrDuplicate) {
			return ulid.ULID{}, oops.Code(CodeConflict).With("operation", OpRegister).Wrap(ErrConflict)
		}
		return ulid.ULID{}, m.storeFailure(ctx, OpRegister, "create account", err)
	}

	m.events.Audit(ctx, "account registered",
		slog.String("account_id", account.ID.String()),
		slog.String("tenant_id", account.TenantID),
	)

	msg := VerificationMessage(m.baseURL, account.Email, account.Name, token)
	if sendErr := m.notifier.Send(ctx, msg); sendErr != nil {
		err = m.deliveryFailure(ctx, OpRegister, account.ID, sendErr)
		return account.ID, err
	}

	return account.ID, nil
}

// VerifyEmail consumes a verification token and activates its account.
// A token can succeed only once.
func (m *Manager) VerifyEmail(ctx context.Context, token string) (err error) {
	ctx, done := m.observe(ctx, OpVerifyEmail)
	defer func() { done(&err) }()

	if token == "" {
		return missingToken(OpVerifyEmail)
	}

	account, err := m.accounts.ConsumeVerificationToken(ctx, HashToken(token), m.now())
	if err != nil {
		if isNotFound(err) {
			m.events.Auth(ctx, "verification rejected: unknown token")
			return invalidToken(OpVerifyEmail, ReasonNotStored)
		}
		return m.storeFailure(ctx, OpVerifyEmail, "consume verification token", err)
	}

	m.events.Audit(ctx, "email verified", slog.String("account_id", account.ID.String()))
	return nil
}
