// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements the credential and session lifecycle.
//
// # Domain Types
//
// Domain types (Account, RefreshToken, Session) should be created using
// their constructors:
//   - NewAccount - creates an Account in PENDING_VERIFICATION with a normalized email
//   - NewRefreshToken - creates the record of a signed refresh token by hash
//   - NewSession - creates server-side sign-in state with an expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Manager
//
// Manager coordinates the lifecycle operations: Register, VerifyEmail, Login,
// Refresh, ForgotPassword, ResetPassword, Logout and Authenticate. Each
// failure wraps exactly one sentinel, so KindOf classifies it for the request
// layer. Anything unclassified is a StoreError.
//
// An account holds at most one refresh token. Login and Refresh replace it
// inside one transaction, and Refresh consumes the presented record before
// issuing a successor.
package auth
