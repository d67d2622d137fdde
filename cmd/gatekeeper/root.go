// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/xdg"
)

// serviceName labels logs and spans.
const serviceName = "gatekeeper"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the gatekeeper CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Gatekeeper - credential and session lifecycle service",
		Long: `Gatekeeper registers accounts, verifies email addresses, issues
access and refresh tokens, and runs password reset and logout.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/gatekeeper/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// loadConfig reads the config file named by --config (or the XDG default
// when present), the command's flags and the environment secrets.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		found, err := xdg.FindConfigFile()
		if err != nil {
			return nil, err
		}
		path = found
	}
	return config.Load(config.LoadOptions{
		Path:  path,
		Flags: cmd.Flags(),
	})
}

// loadValidConfig is loadConfig followed by Validate.
func loadValidConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
