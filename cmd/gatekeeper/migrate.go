// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/store"
)

// NewMigrateCmd creates the migrate command and its subcommands. Without a
// subcommand it applies all pending migrations.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the database schema migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m MigrationRunner) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m MigrationRunner) error {
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all tables; pass --yes to confirm")
			}
			return withMigrator(cmd, deps, func(m MigrationRunner) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping all tables")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations (negative N rolls back)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m MigrationRunner) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Applied %d migration step(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (dirty schema recovery)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m MigrationRunner) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m MigrationRunner) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				printStatus(cmd, st)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator loads the database URL, opens a migrator, runs fn and closes
// the migrator.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(MigrationRunner) error) error {
	deps = deps.withDefaults()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").With("key", "database.url").Errorf("database url is required (set DATABASE_URL)")
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	return fn(m)
}

// parseVersion parses a whole, possibly negative, integer argument.
func parseVersion(arg string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Wrap(err)
	}
	return v, nil
}

func printStatus(cmd *cobra.Command, st store.Status) {
	state := "clean"
	if st.Dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", st.Version, state)
	for _, v := range st.Applied {
		cmd.Printf("  [x] %s\n", migrationLabel(v))
	}
	for _, v := range st.Pending {
		cmd.Printf("  [ ] %s\n", migrationLabel(v))
	}
	if len(st.Pending) == 0 {
		cmd.Println("Schema is up to date")
	}
}

func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return fmt.Sprintf("%06d", v)
	}
	return name
}
