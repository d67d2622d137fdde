// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// Log categories.
const (
	CategoryAuth  = "auth"
	CategoryAudit = "audit"
	CategoryError = "error"
)

// Categories routes lifecycle events to one logger, tagging each record with
// its category.
type Categories struct {
	auth  *slog.Logger
	audit *slog.Logger
	error *slog.Logger
}

// NewCategories creates a Categories writing to logger.
func NewCategories(logger *slog.Logger) *Categories {
	return &Categories{
		auth:  logger.With(slog.String("category", CategoryAuth)),
		audit: logger.With(slog.String("category", CategoryAudit)),
		error: logger.With(slog.String("category", CategoryError)),
	}
}

// Auth implements auth.EventLogger.
func (c *Categories) Auth(ctx context.Context, msg string, attrs ...slog.Attr) {
	c.auth.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

// Audit implements auth.EventLogger.
func (c *Categories) Audit(ctx context.Context, msg string, attrs ...slog.Attr) {
	c.audit.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

// Error implements auth.EventLogger. oops errors contribute their code and
// context.
func (c *Categories) Error(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		if oopsErr, ok := oops.AsOops(err); ok {
			if code := oopsErr.Code(); code != nil {
				attrs = append(attrs, slog.Any("code", code))
			}
			if errCtx := oopsErr.Context(); len(errCtx) > 0 {
				attrs = append(attrs, slog.Any("context", errCtx))
			}
		}
	}
	c.error.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

var _ auth.EventLogger = (*Categories)(nil)
