// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// Repository sentinels. Storage adapters wrap these so the manager can
// distinguish a missing row or a uniqueness violation from an outage.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")
)

// Lifecycle failure sentinels. Manager operations wrap exactly one of these
// with an oops code; anything else reaching the caller is a store failure.
var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("account already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrMissingToken        = errors.New("token missing")
	ErrPasswordUnchanged   = errors.New("new password matches current password")
	ErrAccountNotFound     = errors.New("account not found")
	ErrEmailDeliveryFailed = errors.New("email delivery failed")
)

// Error codes attached to lifecycle failures.
const (
	CodeValidation          = "AUTH_VALIDATION"
	CodeConflict            = "AUTH_CONFLICT"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeEmailNotVerified    = "AUTH_EMAIL_NOT_VERIFIED"
	CodeInvalidToken        = "AUTH_INVALID_TOKEN"
	CodeMissingToken        = "AUTH_MISSING_TOKEN"
	CodePasswordUnchanged   = "AUTH_PASSWORD_UNCHANGED"
	CodeNotFound            = "AUTH_NOT_FOUND"
	CodeEmailDeliveryFailed = "AUTH_EMAIL_DELIVERY_FAILED"
	CodeStoreError          = "AUTH_STORE_ERROR"
)

// Kind classifies a lifecycle failure for the request layer.
type Kind string

// Failure kinds.
const (
	KindNone                Kind = ""
	KindValidation          Kind = "ValidationError"
	KindConflict            Kind = "Conflict"
	KindInvalidCredentials  Kind = "InvalidCredentials"
	KindEmailNotVerified    Kind = "EmailNotVerified"
	KindInvalidToken        Kind = "InvalidToken"
	KindMissingToken        Kind = "MissingToken"
	KindPasswordUnchanged   Kind = "PasswordUnchanged"
	KindNotFound            Kind = "NotFound"
	KindEmailDeliveryFailed Kind = "EmailDeliveryFailed"
	KindStoreError          Kind = "StoreError"
)

var kindSentinels = []struct {
	kind Kind
	err  error
}{
	{KindValidation, ErrValidation},
	{KindConflict, ErrConflict},
	{KindInvalidCredentials, ErrInvalidCredentials},
	{KindEmailNotVerified, ErrEmailNotVerified},
	{KindInvalidToken, ErrInvalidToken},
	{KindMissingToken, ErrMissingToken},
	{KindPasswordUnchanged, ErrPasswordUnchanged},
	{KindNotFound, ErrAccountNotFound},
	{KindEmailDeliveryFailed, ErrEmailDeliveryFailed},
}

// KindOf reports the failure kind of err. A nil error has KindNone and any
// error that does not carry a lifecycle sentinel is a KindStoreError.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, s := range kindSentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindStoreError
}

// Retryable reports whether a caller may retry the operation that produced
// err. Only dependency failures qualify; business rejections are
// deterministic for the same input and store state.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreError
}
