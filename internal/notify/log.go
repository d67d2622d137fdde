// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/holomush/gatekeeper/internal/auth"
)

// LogNotifier writes messages to a logger instead of sending them. It backs
// the "log" mail driver used in development, where the links in the body are
// copied out of the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger selects slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send implements auth.Notifier.
func (n *LogNotifier) Send(ctx context.Context, msg auth.Message) error {
	n.logger.InfoContext(ctx, "email not sent, log driver active",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}

var _ auth.Notifier = (*LogNotifier)(nil)
