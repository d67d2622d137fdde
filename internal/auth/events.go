// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
)

// EventLogger receives lifecycle events by category. The manager never
// reaches for a process-wide logger.
type EventLogger interface {
	// Auth records sign-in activity such as logins, refreshes and rejections.
	Auth(ctx context.Context, msg string, attrs ...slog.Attr)

	// Audit records state changes to accounts and credentials.
	Audit(ctx context.Context, msg string, attrs ...slog.Attr)

	// Error records dependency failures with their cause.
	Error(ctx context.Context, msg string, err error, attrs ...slog.Attr)
}

// NopEventLogger discards every event.
type NopEventLogger struct{}

// Auth implements EventLogger.
func (NopEventLogger) Auth(context.Context, string, ...slog.Attr) {}

// Audit implements EventLogger.
func (NopEventLogger) Audit(context.Context, string, ...slog.Attr) {}

// Error implements EventLogger.
func (NopEventLogger) Error(context.Context, string, error, ...slog.Attr) {}

var _ EventLogger = NopEventLogger{}
