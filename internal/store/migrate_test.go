// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

// latestVersion is the highest embedded migration.
const latestVersion = 3

type mockEngine struct {
	upErr          error
	downErr        error
	stepsErr       error
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDbErr     error
}

func (m *mockEngine) Up() error                    { return m.upErr }
func (m *mockEngine) Down() error                  { return m.downErr }
func (m *mockEngine) Steps(_ int) error            { return m.stepsErr }
func (m *mockEngine) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockEngine) Force(_ int) error            { return m.forceErr }
func (m *mockEngine) Close() (error, error)        { return m.closeSourceErr, m.closeDbErr }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@db:5432/gatekeeper", "pgx5://u:p@db:5432/gatekeeper"},
		{"postgresql://db/gatekeeper?sslmode=disable", "pgx5://db/gatekeeper?sslmode=disable"},
		{"pgx5://db/gatekeeper", "pgx5://db/gatekeeper"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, migrateURL(tt.in))
		})
	}
}

func TestMigrator_WrapsFailures(t *testing.T) {
	boom := errors.New("database locked")
	tests := []struct {
		name string
		mock *mockEngine
		call func(*Migrator) error
		code string
	}{
		{"up", &mockEngine{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &mockEngine{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", &mockEngine{stepsErr: boom}, func(m *Migrator) error { return m.Steps(2) }, "MIGRATION_STEPS_FAILED"},
		{"force", &mockEngine{forceErr: boom}, func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"force negative", &mockEngine{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
		{"version", &mockEngine{versionErr: boom}, func(m *Migrator) error {
			_, _, err := m.Version()
			return err
		}, "MIGRATION_VERSION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(&Migrator{m: tt.mock})
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestMigrator_NoChangeIsSuccess(t *testing.T) {
	m := &Migrator{m: &mockEngine{
		upErr:    migrate.ErrNoChange,
		downErr:  migrate.ErrNoChange,
		stepsErr: migrate.ErrNoChange,
	}}
	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
	require.NoError(t, m.Steps(0))
}

func TestMigrator_Version(t *testing.T) {
	t.Run("dirty", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &mockEngine{versionVal: 2, dirty: true}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("fresh database", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &mockEngine{versionErr: migrate.ErrNilVersion}}).Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})
}

func TestMigrator_Status(t *testing.T) {
	tests := []struct {
		name    string
		mock    *mockEngine
		applied []uint
		pending []uint
	}{
		{"fresh", &mockEngine{versionErr: migrate.ErrNilVersion}, nil, []uint{1, 2, 3}},
		{"partial", &mockEngine{versionVal: 1}, []uint{1}, []uint{2, 3}},
		{"latest", &mockEngine{versionVal: latestVersion}, []uint{1, 2, 3}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := (&Migrator{m: tt.mock}).Status()
			require.NoError(t, err)
			assert.Equal(t, tt.applied, st.Applied)
			assert.Equal(t, tt.pending, st.Pending)
		})
	}

	t.Run("version error carries operation", func(t *testing.T) {
		_, err := (&Migrator{m: &mockEngine{versionErr: errors.New("connection lost")}}).Status()
		errutil.AssertErrorContext(t, err, "operation", "migration status")
	})
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		mock      *mockEngine
		component string
	}{
		{"source", &mockEngine{closeSourceErr: errors.New("source close failed")}, "source"},
		{"database", &mockEngine{closeDbErr: errors.New("db close failed")}, "database"},
		{"both", &mockEngine{
			closeSourceErr: errors.New("source close failed"),
			closeDbErr:     errors.New("db close failed"),
		}, "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.mock}).Close()
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}

	require.NoError(t, (&Migrator{m: &mockEngine{}}).Close())
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		version uint
		want    string
	}{
		{1, "000001_initial"},
		{2, "000002_refresh_tokens"},
		{3, "000003_sessions"},
		{999, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("version_%d", tt.version), func(t *testing.T) {
			name, err := MigrationName(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestReadCatalog(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_b.up.sql":   {},
		"migrations/000002_b.down.sql": {},
		"migrations/000001_a.up.sql":   {},
		"migrations/notes.up.sql":      {},
		"migrations/42_short.up.sql":   {},
		"migrations/README.md":         {},
	}
	got, err := readCatalog(fsys)
	require.NoError(t, err)
	assert.Equal(t, []Migration{{1, "000001_a"}, {2, "000002_b"}}, got)
}

func TestReadCatalog_MissingDir(t *testing.T) {
	_, err := readCatalog(fstest.MapFS{})
	errutil.AssertErrorCode(t, err, "MIGRATION_LIST_FAILED")
}

func TestMigrations_ReturnsCopy(t *testing.T) {
	first, err := Migrations()
	require.NoError(t, err)
	require.Len(t, first, latestVersion)
	first[0].Version = 99999

	second, err := Migrations()
	require.NoError(t, err)
	assert.Equal(t, uint(1), second[0].Version)
	assert.Equal(t, "000003_sessions", second[2].Name)
}
