// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// pgx5:// driver
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir = "migrations"
	upSuffix      = ".up.sql"
)

// Migration is one embedded schema change.
type Migration struct {
	Version uint
	Name    string // NNNNNN_name stem of the up file
}

// embeddedCatalog parses the embedded directory once.
var embeddedCatalog = sync.OnceValues(func() ([]Migration, error) {
	return readCatalog(migrationsFS)
})

// Migrations lists the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	all, err := embeddedCatalog()
	if err != nil {
		return nil, err
	}
	return slices.Clone(all), nil
}

// MigrationName returns the NNNNNN_name stem of a migration, or "" when no
// migration has that version.
func MigrationName(version uint) (string, error) {
	all, err := embeddedCatalog()
	if err != nil {
		return "", err
	}
	i := slices.IndexFunc(all, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return "", nil
	}
	return all[i].Name, nil
}

// readCatalog collects the up files of fsys. Names that do not start with a
// six digit version are logged and skipped.
func readCatalog(fsys fs.ReadDirFS) ([]Migration, error) {
	entries, err := fsys.ReadDir(migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("dir", migrationsDir).Wrap(err)
	}

	var out []Migration
	for _, entry := range entries {
		stem, ok := strings.CutSuffix(entry.Name(), upSuffix)
		if !ok {
			continue
		}
		digits, _, _ := strings.Cut(stem, "_")
		v, err := strconv.ParseUint(digits, 10, 32)
		if len(digits) != 6 || err != nil {
			slog.Warn("skipping migration with malformed name", "filename", entry.Name())
			continue
		}
		out = append(out, Migration{Version: uint(v), Name: stem})
	}
	slices.SortFunc(out, func(a, b Migration) int { return int(a.Version) - int(b.Version) })
	return slices.CompactFunc(out, func(a, b Migration) bool { return a.Version == b.Version }), nil
}

// engine is the part of *migrate.Migrate the Migrator drives.
type engine interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m engine
}

// Status summarizes the schema state of a database.
type Status struct {
	Version uint
	Dirty   bool
	Applied []uint
	Pending []uint
}

// NewMigrator opens a Migrator on databaseURL. postgres:// and postgresql://
// URLs are accepted as well as pgx5://.
func NewMigrator(databaseURL string) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		_ = src.Close()
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "open database").Wrap(err)
	}
	return &Migrator{m: m}, nil
}

func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// settle treats "nothing to do" as success and codes anything else.
func settle(err error, code string, attrs ...any) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return oops.Code(code).With(attrs...).Wrap(err)
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	return settle(m.m.Up(), "MIGRATION_UP_FAILED")
}

// Down rolls back every migration, dropping all tables and data.
func (m *Migrator) Down() error {
	return settle(m.m.Down(), "MIGRATION_DOWN_FAILED")
}

// Steps applies n migrations. Negative n migrates down.
func (m *Migrator) Steps(n int) error {
	return settle(m.m.Steps(n), "MIGRATION_STEPS_FAILED", "steps", n)
}

// Force records version as applied without running anything, clearing the
// dirty flag after a manual repair.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").With("version", version).Errorf("version must be non-negative")
	}
	return settle(m.m.Force(version), "MIGRATION_FORCE_FAILED", "version", version)
}

// Version returns the current schema version and dirty flag. An empty
// database reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return v, dirty, nil
}

// Status splits the embedded migrations into applied and pending.
func (m *Migrator) Status() (Status, error) {
	current, dirty, err := m.Version()
	if err != nil {
		return Status{}, oops.With("operation", "migration status").Wrap(err)
	}
	all, err := embeddedCatalog()
	if err != nil {
		return Status{}, oops.With("operation", "migration status").Wrap(err)
	}

	st := Status{Version: current, Dirty: dirty}
	for _, mig := range all {
		if mig.Version <= current {
			st.Applied = append(st.Applied, mig.Version)
		} else {
			st.Pending = append(st.Pending, mig.Version)
		}
	}
	return st, nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	component := ""
	switch {
	case srcErr != nil && dbErr != nil:
		component = "both"
	case srcErr != nil:
		component = "source"
	case dbErr != nil:
		component = "database"
	default:
		return nil
	}
	return oops.Code("MIGRATION_CLOSE_FAILED").With("component", component).Wrap(errors.Join(srcErr, dbErr))
}
