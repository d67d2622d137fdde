// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// Transactor runs fn in a single storage transaction. Repository calls made
// with the ctx passed to fn join that transaction. A non-nil error from fn
// rolls back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
