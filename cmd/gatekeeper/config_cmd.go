// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/config"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.Show()
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}
	config.RegisterFlags(show.Flags())

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration is complete and valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadValidConfig(cmd); err != nil {
				return err
			}
			cmd.Println("Configuration is valid")
			return nil
		},
	}
	config.RegisterFlags(validate.Flags())

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}

	cmd.AddCommand(show, validate, schema)
	return cmd
}
