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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gatekeeper/auth")

// DefaultTenantID is assigned to accounts when no tenant is configured.
const DefaultTenantID = "tenant-001"

// DefaultOperationTimeout bounds an operation when no timeout is configured.
const DefaultOperationTimeout = 10 * time.Second

// Deps are the collaborators a Manager needs. Every field is required.
type Deps struct {
	Accounts      AccountRepository
	RefreshTokens RefreshTokenRepository
	Sessions      SessionRepository
	Transactor    Transactor
	Hasher        PasswordHasher
	Codec         *TokenCodec
	Notifier      Notifier
	Events        EventLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source. Tests use it to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTenantID sets the tenant assigned to new accounts.
func WithTenantID(tenantID string) Option {
	return func(m *Manager) {
		if tenantID != "" {
			m.tenantID = tenantID
		}
	}
}

// WithBaseURL sets the public URL that email links point at.
func WithBaseURL(baseURL string) Option {
	return func(m *Manager) {
		m.baseURL = baseURL
	}
}

// WithResetTokenTTL sets how long a password reset token stays usable.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.resetTTL = ttl
		}
	}
}

// WithOperationTimeout bounds every operation, including its store calls and
// email delivery. A caller deadline that is sooner still applies. Zero leaves
// operations bounded only by the caller.
func WithOperationTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.opTimeout = d
		}
	}
}

// Manager runs the credential and session lifecycle: registration,
// verification, login, refresh rotation, password reset and logout.
// It holds no mutable state; all durability lives in the repositories.
type Manager struct {
	accounts      AccountRepository
	refreshTokens RefreshTokenRepository
	sessions      SessionRepository
	tx            Transactor
	hasher        PasswordHasher
	codec         *TokenCodec
	notifier      Notifier
	events        EventLogger

	// dummyHash is verified against when an email is unknown so that login
	// takes the same time whether or not the account exists.
	dummyHash string

	tenantID  string
	baseURL   string
	resetTTL  time.Duration
	opTimeout time.Duration
	now       func() time.Time
}

// NewManager creates a Manager. Returns an error if any dependency is nil.
func NewManager(deps Deps, opts ...Option) (*Manager, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("account repository is required")
	case deps.RefreshTokens == nil:
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("refresh token repository is required")
	case deps.Sessions == nil:
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("session repository is required")
	case deps.Transactor == nil:
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("transactor is required")
	case deps.Hasher == nil:
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("password hasher is required")
	case deps.Codec == nil:
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("token codec is required")
	case deps.Notifier == nil:
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("notifier is required")
	case deps.Events == nil:
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("event logger is required")
	}

	m := &Manager{
		accounts:      deps.Accounts,
		refreshTokens: deps.RefreshTokens,
		sessions:      deps.Sessions,
		tx:            deps.Transactor,
		hasher:        deps.Hasher,
		codec:         deps.Codec,
		notifier:      deps.Notifier,
		events:        deps.Events,
		tenantID:      DefaultTenantID,
		resetTTL:      ResetTokenExpiry,
		opTimeout:     DefaultOperationTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	secret, _, err := GenerateSecretToken()
	if err != nil {
		return nil, err
	}
	if m.dummyHash, err = m.hasher.Hash(secret); err != nil {
		return nil, oops.Code("MANAGER_INVALID_CONFIG").With("operation", "hash dummy password").Wrap(err)
	}
	return m, nil
}

// RefreshTTL returns the lifetime of issued refresh tokens.
func (m *Manager) RefreshTTL() time.Duration {
	return m.codec.RefreshTTL()
}

// observe starts a span for op, applies the operation timeout and returns a
// finisher that records the outcome on the span and in the operation metrics.
func (m *Manager) observe(ctx context.Context, op string) (context.Context, func(*error)) {
	start := time.Now()
	cancel := context.CancelFunc(func() {})
	if m.opTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, m.opTimeout)
	}
	ctx, span := tracer.Start(ctx, "auth."+op, trace.WithAttributes(attribute.String("auth.operation", op)))
	return ctx, func(errp *error) {
		defer cancel()
		var err error
		if errp != nil {
			err = *errp
		}
		if err != nil {
			span.SetAttributes(attribute.String("auth.outcome", string(KindOf(err))))
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
		RecordOperation(op, err, time.Since(start))
	}
}

// storeFailure wraps a repository error as a StoreError and logs the cause.
func (m *Manager) storeFailure(ctx context.Context, op, step string, err error) error {
	m.events.Error(ctx, "credential store failure", err,
		slog.String("operation", op),
		slog.String("step", step),
	)
	return oops.Code(CodeStoreError).
		With("operation", op).
		With("step", step).
		Wrap(err)
}

// deliveryFailure reports a notifier error as EmailDeliveryFailed. The cause
// is logged but not chained, so its text cannot reach the caller.
func (m *Manager) deliveryFailure(ctx context.Context, op string, accountID ulid.ULID, err error) error {
	m.events.Error(ctx, "email delivery failed", err,
		slog.String("operation", op),
		slog.String("account_id", accountID.String()),
	)
	return oops.Code(CodeEmailDeliveryFailed).
		With("operation", op).
		With("account_id", accountID.String()).
		Wrap(ErrEmailDeliveryFailed)
}

// invalidToken rejects a presented token with the given reason.
func invalidToken(op string, reason DecodeReason) error {
	return oops.Code(CodeInvalidToken).
		With("operation", op).
		With("reason", string(reason)).
		Wrap(ErrInvalidToken)
}

// missingToken rejects a request that presented no token.
func missingToken(op string) error {
	return oops.Code(CodeMissingToken).With("operation", op).Wrap(ErrMissingToken)
}

// isNotFound reports a repository miss.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
