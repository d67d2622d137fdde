// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/httpapi"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/internal/ratelimit"
	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the auth HTTP API, the metrics and probe server, and the
background purge of expired refresh tokens and sessions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadValidConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the API until ctx ends, a signal arrives or a
// server fails. A nil deps uses the defaults.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  deps.LogWriter,
	})
	logger.Info("starting gatekeeper", "addr", cfg.Server.Addr, "production", cfg.Server.Production)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory); err != nil {
			return err
		}
	}

	db, err := deps.Connect(ctx, cfg.Database.URL, store.ConnectOptions{
		MaxConns: cfg.Database.MaxConns,
		Attempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	var obsServer ObservabilityServer
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, db.Ping)
		registry = obsServer.Registry()
	}
	auth.RegisterMetrics(registry)

	manager, err := newManager(cfg, db, logger, deps.Notifier)
	if err != nil {
		return err
	}

	apiCfg := httpapi.Config{
		Lifecycle:  manager,
		DBCheck:    db.Ping,
		Metrics:    observability.NewHTTPMetrics(registry),
		Logger:     logger,
		Production: cfg.Server.Production,
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewWithRegistry(cfg.RateLimitConfig(), registry)
		defer limiter.Close()
		apiCfg.RateGate = limiter
	}
	gin.SetMode(gin.ReleaseMode)
	api, err := httpapi.New(apiCfg)
	if err != nil {
		return err
	}

	listener, err := deps.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")
	logger.Info("api server listening", "addr", listener.Addr().String())

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			shutdownServer(httpServer, cfg.Server.ShutdownTimeout, logger)
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	purgeDone := make(chan struct{})
	go func() {
		defer close(purgeDone)
		runPurgeLoop(ctx, cfg.Purge.Interval, manager, logger)
	}()

	cmd.Println("Gatekeeper started")
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownServer(httpServer, cfg.Server.ShutdownTimeout, logger)
	if obsServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := obsServer.Stop(stopCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
		stopCancel()
	}
	<-purgeDone

	logger.Info("shutdown complete")
	return nil
}

func shutdownServer(srv *http.Server, timeout time.Duration, logger *slog.Logger) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
}

// autoMigrate applies pending migrations before the pool opens.
func autoMigrate(url string, factory func(string) (MigrationRunner, error)) error {
	m, err := factory(url)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	st, err := m.Status()
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "read schema version").Wrap(err)
	}
	slog.Info("database schema up to date", "version", st.Version)
	return nil
}

// purger is the part of the manager the purge loop drives.
type purger interface {
	PurgeExpired(ctx context.Context) (auth.PurgeResult, error)
}

// runPurgeLoop purges expired credentials every interval until ctx ends. A
// non-positive interval disables it.
func runPurgeLoop(ctx context.Context, interval time.Duration, p purger, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := p.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogErrorContext(ctx, logger, "purge failed", err)
				continue
			}
			logger.Debug("purge completed", "refresh_tokens", res.RefreshTokens, "sessions", res.Sessions)
		}
	}
}

// monitorServerErrors cancels ctx when a server reports a failure. It exits
// when the channel closes or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
