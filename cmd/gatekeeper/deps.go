// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/postgres"
	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/internal/store"
)

// Database is the connection pool the commands use. *pgxpool.Pool
// implements it.
type Database interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

var _ Database = (*pgxpool.Pool)(nil)

// MigrationRunner wraps the methods used from store.Migrator.
type MigrationRunner interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

var _ MigrationRunner = (*store.Migrator)(nil)

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
}

// Deps contains injectable dependencies for the commands. Nil fields use
// their default implementations.
type Deps struct {
	// Connect opens the database pool.
	// Default: store.Connect
	Connect func(ctx context.Context, url string, opts store.ConnectOptions) (Database, error)

	// MigratorFactory creates a migration runner for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (MigrationRunner, error)

	// ObservabilityServerFactory creates the metrics and probe server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// Listen binds the API listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)

	// Notifier replaces the configured mail driver.
	Notifier auth.Notifier

	// LogWriter receives log output. Default: os.Stderr
	LogWriter io.Writer
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.Connect == nil {
		out.Connect = func(ctx context.Context, url string, opts store.ConnectOptions) (Database, error) {
			pool, err := store.Connect(ctx, url, opts)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (MigrationRunner, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if out.Listen == nil {
		out.Listen = net.Listen
	}
	return &out
}
