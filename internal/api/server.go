// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/sqlrest/internal/openapi"
	"github.com/taibuivan/sqlrest/internal/platform/constants"
	"github.com/taibuivan/sqlrest/internal/platform/middleware"
	"github.com/taibuivan/sqlrest/internal/realtimews"
	"github.com/taibuivan/sqlrest/internal/restapi"
)

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// Handlers groups every protocol handler this service exposes.
//
// New surfaces add a field here and register its route in [NewServer].
type Handlers struct {
	// Liveness is the /healthz handler — always returns 200 if the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /readyz handler — returns 200 once the pool and catalog are healthy.
	Readiness http.HandlerFunc

	// REST serves the generated table/view/RPC surface.
	REST *restapi.Handler

	// OpenAPI serves the generated document and its Swagger-UI shell.
	OpenAPI *openapi.Handler

	// Realtime serves the change-feed WebSocket endpoint.
	Realtime *realtimews.Handler
}

// NewServer constructs the chi router with the full middleware chain and
// registers every route.
func NewServer(ctx context.Context, listenAddr string, log *slog.Logger, h Handlers) *Server {
	rte := chi.NewRouter()

	// Global middleware, applied in order of execution.
	rte.Use(middleware.RequestID())
	rte.Use(middleware.StructuredLogger(log))
	rte.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	rte.Use(middleware.RateLimit(ctx))
	rte.Use(middleware.PanicRecovery(log))
	rte.Use(middleware.CORS())
	rte.Use(chimw.CleanPath)

	// Unauthenticated probes for container orchestration.
	rte.Get("/healthz", h.Liveness)
	rte.Get("/readyz", h.Readiness)

	// Discovery surface: the generated OpenAPI document and its viewer.
	h.OpenAPI.Mount(rte)

	// Realtime change-feed subscriptions, authenticated per-connection via
	// its own token query parameter rather than this chain.
	rte.Handle("/realtime", h.Realtime)

	// The generated table/view/RPC surface. Mounted last so it never
	// shadows the fixed paths above — chi matches the more specific
	// literal routes ("/healthz", "/swagger", ...) ahead of the
	// single-segment "/{table}" wildcard regardless of registration
	// order, but keeping the fixed routes first documents the intent.
	h.REST.Mount(rte)

	return &Server{
		router: rte,
		log:    log,
		httpServer: &http.Server{
			Addr:              listenAddr,
			Handler:           rte,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server is
// closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
