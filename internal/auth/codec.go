// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

// Token types carried in the "typ" claim.
const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// MinSigningKeyBytes is the shortest HMAC key the codec accepts.
const MinSigningKeyBytes = 32

// Claims is the payload of access and refresh tokens.
type Claims struct {
	Type  TokenType `json:"typ"`
	Email string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim.
func (c *Claims) AccountID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("TOKEN_INVALID_SUBJECT").With("sub", c.Subject).Wrap(err)
	}
	return id, nil
}

// DecodeReason explains why a token failed to decode.
type DecodeReason string

// Decode failure reasons.
const (
	ReasonMalformed DecodeReason = "malformed"
	ReasonSignature DecodeReason = "signature"
	ReasonExpired   DecodeReason = "expired"
	ReasonWrongType DecodeReason = "wrong_type"
	ReasonClaims    DecodeReason = "claims"

	// ReasonNotStored marks a well-formed token with no matching store record.
	ReasonNotStored DecodeReason = "not_stored"
)

// DecodeError is the failure half of TokenCodec.Decode.
type DecodeError struct {
	Reason DecodeReason
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("token decode failed: %s", e.Reason)
	}
	return fmt.Sprintf("token decode failed: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenCodec signs and verifies HS256 JWTs. Access and refresh tokens use
// separate keys, so one key cannot mint the other kind.
type TokenCodec struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewTokenCodec creates a validated TokenCodec. A nil now uses time.Now.
func NewTokenCodec(cfg TokenConfig, now func() time.Time) (*TokenCodec, error) {
	if len(cfg.AccessSecret) < MinSigningKeyBytes {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access secret must be at least %d bytes", MinSigningKeyBytes)
	}
	if len(cfg.RefreshSecret) < MinSigningKeyBytes {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("refresh secret must be at least %d bytes", MinSigningKeyBytes)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("token TTLs must be positive")
	}
	if now == nil {
		now = time.Now
	}

	return &TokenCodec{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        now,
	}, nil
}

// AccessTTL returns the access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *TokenCodec) keyFor(typ TokenType) ([]byte, time.Duration, error) {
	switch typ {
	case TokenTypeAccess:
		return c.accessKey, c.accessTTL, nil
	case TokenTypeRefresh:
		return c.refreshKey, c.refreshTTL, nil
	default:
		return nil, 0, oops.Code("TOKEN_UNKNOWN_TYPE").With("typ", typ).Errorf("unknown token type %q", typ)
	}
}

// Issue signs a token of the given type for subject.
// Every token carries a unique ID so two tokens minted in the same second differ.
func (c *TokenCodec) Issue(typ TokenType, subject ulid.ULID, email string) (string, *Claims, error) {
	key, ttl, err := c.keyFor(typ)
	if err != nil {
		return "", nil, err
	}

	now := c.now()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   subject.String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if typ == TokenTypeAccess {
		claims.Email = email
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", nil, oops.Code("TOKEN_SIGN_FAILED").With("typ", typ).Wrap(err)
	}
	return signed, claims, nil
}

// Decode verifies raw as a token of the given type. It either returns the
// claims or a *DecodeError; there is no partial result.
func (c *TokenCodec) Decode(typ TokenType, raw string) (*Claims, error) {
	key, _, err := c.keyFor(typ)
	if err != nil {
		return nil, &DecodeError{Reason: ReasonWrongType, Err: err}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return nil, &DecodeError{Reason: classifyJWTError(err), Err: err}
	}

	if claims.Type != typ {
		return nil, &DecodeError{
			Reason: ReasonWrongType,
			Err:    fmt.Errorf("expected %s token, got %q", typ, claims.Type),
		}
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, &DecodeError{Reason: ReasonClaims, Err: err}
	}
	return claims, nil
}

func classifyJWTError(err error) DecodeReason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	default:
		return ReasonClaims
	}
}
