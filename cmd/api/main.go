// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Api is the entry point for the generated REST API server.

The server introspects a live SQL Server catalog and exposes every table,
view, and stored procedure it finds as a PostgREST-style HTTP surface, plus
a realtime change-feed over WebSocket.

Usage:

	go run cmd/api/main.go [flags]

Flags and their environment/file equivalents are documented in
internal/platform/config.

Startup Sequence:

 1. Logger: initialize structured JSON logging (slog).
 2. Config: load and merge file/environment/flag layers.
 3. Pool: establish the bounded SQL Server connection pool.
 4. Catalog: load the schema snapshot the whole surface is generated from.
 5. Token verifier: prepare bearer-token verification (JWKS discovery for
    asymmetric mode happens here, not on the first request).
 6. Change-feed engine: seed the watermark and start polling, if enabled.
 7. Router: assemble the HTTP surface and bind the listener.
 8. Lifecycle: block until a signal arrives, then shut down in reverse order.

No business logic lives here. This file is strictly for orchestration and wiring.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/sqlrest/internal/api"
	"github.com/taibuivan/sqlrest/internal/catalog"
	"github.com/taibuivan/sqlrest/internal/changefeed"
	"github.com/taibuivan/sqlrest/internal/mssqlpool"
	"github.com/taibuivan/sqlrest/internal/openapi"
	"github.com/taibuivan/sqlrest/internal/platform/config"
	"github.com/taibuivan/sqlrest/internal/platform/constants"
	"github.com/taibuivan/sqlrest/internal/realtimews"
	"github.com/taibuivan/sqlrest/internal/restapi"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing")

	// # 2. Configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.LogFormat == "text" {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
			With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
	}

	log.Info("configuration_loaded",
		slog.String("listen_addr", cfg.ListenAddr),
		slog.String("default_schema", cfg.DefaultSchema),
		slog.String("db_server", cfg.DBServer),
	)

	// Root context for startup. A bounded deadline prevents the process
	// from hanging indefinitely on an unreachable database.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// # 3. Connection Pool
	pool, err := mssqlpool.Open(startupCtx, cfg.PoolConfig())
	if err != nil {
		return fmt.Errorf("open sql server pool: %w", err)
	}
	defer func() {
		log.Info("closing sql server pool")
		_ = pool.Close()
	}()

	// # 4. Catalog
	store := catalog.NewStore()
	if err := store.Reload(startupCtx, pool.DB()); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info("catalog_loaded")

	// # 5. Token Verifier
	verifier, err := tokenauth.NewVerifier(startupCtx, cfg.TokenConfig())
	if err != nil {
		return fmt.Errorf("initialize token verifier: %w", err)
	}

	// Background context for the whole application lifecycle: the
	// change-feed poll loop and the HTTP server both run off this and
	// stop together on shutdown.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// # 6. Change-feed Engine
	feedCfg := changefeed.Config{
		Enabled:       cfg.ChangeFeedEnabled,
		PollPeriod:    cfg.ChangeFeedPollPeriod,
		DefaultSchema: cfg.DefaultSchema,
	}
	engine := changefeed.NewEngine(pool, store, feedCfg)
	if feedCfg.Enabled {
		if err := engine.InitVersion(startupCtx); err != nil {
			return fmt.Errorf("initialize change-feed watermark: %w", err)
		}
		go engine.Run(appCtx)
		log.Info("changefeed_engine_started", slog.Duration("poll_period", feedCfg.PollPeriod))
	}

	// # 7. Handler Wiring
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pool.DB().PingContext(context.Background())
		},
		CatalogLoaded: func() bool {
			return store.Current() != nil
		},
	}, log)

	restHandler := restapi.NewHandler(store, pool, verifier, restapi.Options{
		DefaultSchema:      cfg.DefaultSchema,
		ContextClaims:      cfg.TokenContextClaims,
		SlowQueryThreshold: cfg.SlowQueryThreshold,
		AllowedSchemas:     cfg.AllowedSchemas,
	})
	openapiHandler := openapi.NewHandler(store, cfg.DefaultSchema, constants.AppName, constants.AppVersion, "http://"+cfg.ListenAddr)
	realtimeHandler := realtimews.NewHandler(engine, verifier)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		REST:      restHandler,
		OpenAPI:   openapiHandler,
		Realtime:  realtimeHandler,
	}

	server := api.NewServer(appCtx, cfg.ListenAddr, log, handlers)

	// # 8. Lifecycle Handling
	shutdownErr := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownErr <- fmt.Errorf("http_server_crash: %w", err)
		}
	}()

	log.Info("sqlrest_api_running", slog.String("listen_addr", cfg.ListenAddr))

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-shutdownErr:
		return err
	}

	appCancel() // Stop the change-feed poll loop.

	log.Info("shutting_down_api_server", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		return fmt.Errorf("server_shutdown_failed: %w", err)
	}

	log.Info("graceful_shutdown_complete")
	return nil
}
