// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/postgres"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/notify"
)

// newNotifier builds the configured mail driver.
func newNotifier(cfg *config.Config, logger *slog.Logger) (auth.Notifier, error) {
	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		n, err := notify.NewSMTPNotifier(cfg.SMTPConfig())
		if err != nil {
			return nil, err
		}
		return n, nil
	case config.MailDriverLog:
		return notify.NewLogNotifier(logger), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("key", "mail.driver").Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}
}

// newManager wires the lifecycle manager to db. A nil notifier selects the
// configured mail driver.
func newManager(cfg *config.Config, db Database, logger *slog.Logger, notifier auth.Notifier) (*auth.Manager, error) {
	hasher, err := auth.NewPasswordHasher(cfg.Hasher.Algorithm, cfg.Hasher.BcryptCost)
	if err != nil {
		return nil, err
	}
	codec, err := auth.NewTokenCodec(cfg.TokenConfig(), nil)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		if notifier, err = newNotifier(cfg, logger); err != nil {
			return nil, err
		}
	}

	return auth.NewManager(auth.Deps{
		Accounts:      postgres.NewAccountRepository(db),
		RefreshTokens: postgres.NewRefreshTokenRepository(db),
		Sessions:      postgres.NewSessionRepository(db),
		Transactor:    postgres.NewTransactor(db),
		Hasher:        hasher,
		Codec:         codec,
		Notifier:      notifier,
		Events:        logging.NewCategories(logger),
	},
		auth.WithTenantID(cfg.App.TenantID),
		auth.WithBaseURL(cfg.App.BaseURL),
		auth.WithResetTokenTTL(cfg.App.ResetTokenTTL),
		auth.WithOperationTimeout(cfg.Server.RequestTimeout),
	)
}
