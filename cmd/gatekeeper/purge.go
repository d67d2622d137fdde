// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/store"
)

// NewPurgeCmd creates the purge command.
func NewPurgeCmd() *cobra.Command {
	return newPurgeCmd(nil)
}

func newPurgeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired refresh tokens and sessions once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadValidConfig(cmd)
			if err != nil {
				return err
			}
			return runPurge(cmd.Context(), cfg, cmd, deps)
		},
	}
}

func runPurge(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	logger := logging.Setup(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  deps.LogWriter,
	})

	db, err := deps.Connect(ctx, cfg.Database.URL, store.ConnectOptions{
		MaxConns: 2,
		Attempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	manager, err := newManager(cfg, db, logger, deps.Notifier)
	if err != nil {
		return err
	}
	res, err := manager.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Purged %d refresh token(s) and %d session(s)\n", res.RefreshTokens, res.Sessions)
	return nil
}
