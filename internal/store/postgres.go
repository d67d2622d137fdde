// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the database schema and connection setup.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default connection settings.
const (
	DefaultConnectAttempts  = 5
	DefaultConnectBaseDelay = 500 * time.Millisecond
	maxConnectDelay         = 10 * time.Second
)

// ConnectOptions tunes Connect. Zero values select the defaults.
type ConnectOptions struct {
	MaxConns  int32
	Attempts  uint64
	BaseDelay time.Duration
}

// dialFunc opens and pings a pool. Tests replace it.
type dialFunc func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error)

// Connect opens a connection pool and pings it, retrying with exponential
// backoff while the database is unreachable. A malformed URL fails at once.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	return connect(ctx, databaseURL, opts, dialAndPing)
}

func connect(ctx context.Context, databaseURL string, opts ConnectOptions, dial dialFunc) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.Attempts == 0 {
		opts.Attempts = DefaultConnectAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultConnectBaseDelay
	}

	backoff := retry.NewExponential(opts.BaseDelay)
	backoff = retry.WithCappedDuration(maxConnectDelay, backoff)
	backoff = retry.WithMaxRetries(opts.Attempts-1, backoff)

	var (
		pool    *pgxpool.Pool
		attempt int
	)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := dial(ctx, cfg)
		if err != nil {
			slog.WarnContext(ctx, "database not reachable",
				"attempt", attempt,
				"host", cfg.ConnConfig.Host,
				"error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "connect database").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}

func dialAndPing(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by connect
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err //nolint:wrapcheck // wrapped by connect
	}
	return pool, nil
}
