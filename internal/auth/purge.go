// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
)

// PurgeResult counts the records removed by PurgeExpired.
type PurgeResult struct {
	RefreshTokens int64
	Sessions      int64
}

// PurgeExpired deletes refresh tokens and sessions whose lifetime has passed.
// Expired rows are already refused, so purging only reclaims space.
func (m *Manager) PurgeExpired(ctx context.Context) (result PurgeResult, err error) {
	ctx, done := m.observe(ctx, OpPurgeExpired)
	defer func() { done(&err) }()

	now := m.now()
	if result.RefreshTokens, err = m.refreshTokens.DeleteExpired(ctx, now); err != nil {
		return result, m.storeFailure(ctx, OpPurgeExpired, "delete expired refresh tokens", err)
	}
	if result.Sessions, err = m.sessions.DeleteExpired(ctx, now); err != nil {
		return result, m.storeFailure(ctx, OpPurgeExpired, "delete expired sessions", err)
	}

	if result.RefreshTokens > 0 || result.Sessions > 0 {
		m.events.Audit(ctx, "expired credentials purged",
			slog.Int64("refresh_tokens", result.RefreshTokens),
			slog.Int64("sessions", result.Sessions),
		)
	}
	return result, nil
}
