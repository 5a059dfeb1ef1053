// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires the chi router, middleware chain, and every protocol
handler (REST, OpenAPI/Swagger, realtime WebSocket) into a runnable
[http.Server], and implements the liveness/readiness probes.

Architecture:

  - Liveness: returns 200 OK as long as the process is running.
  - Readiness: pings the SQL Server pool and reports the catalog's loaded
    state; traffic should only be routed here once both are healthy.
*/
package api

import (
	"log/slog"
	"net/http"

	"github.com/taibuivan/sqlrest/internal/platform/constants"
	"github.com/taibuivan/sqlrest/internal/platform/respond"
)

// HealthDependencies holds the injectable dependency checkers for the
// system probes.
type HealthDependencies struct {
	// CheckDatabase performs a shallow ping of the SQL Server pool.
	CheckDatabase func() error

	// CatalogLoaded reports whether the schema catalog has completed at
	// least one successful reload.
	CatalogLoaded func() bool
}

type healthHandler struct {
	dependencies HealthDependencies
	logger       *slog.Logger
}

// NewHealthHandlers constructs the liveness and readiness [http.HandlerFunc] pair.
func NewHealthHandlers(deps HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{dependencies: deps, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /healthz. It confirms the HTTP server is alive and
// accepting connections — it never touches the database.
func (handler *healthHandler) liveness(writer http.ResponseWriter, _ *http.Request) {
	respond.OK(writer, map[string]string{
		constants.FieldStatus:  "ok",
		constants.FieldApp:     constants.AppName,
		constants.FieldVersion: constants.AppVersion,
	})
}

// readiness handles GET /readyz. It verifies the pool is reachable and the
// catalog has loaded at least once — a request routed here before both are
// true would fail every table operation.
func (handler *healthHandler) readiness(writer http.ResponseWriter, _ *http.Request) {
	type checkResult struct {
		Name  string `json:"name"`
		IsOK  bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}

	results := make([]checkResult, 0, 2)
	isSystemReady := true

	if handler.dependencies.CheckDatabase != nil {
		result := checkResult{Name: "database", IsOK: true}
		if err := handler.dependencies.CheckDatabase(); err != nil {
			result.IsOK = false
			result.Error = err.Error()
			isSystemReady = false
			handler.logger.Error("readiness_check_failed",
				slog.String("dependency", "database"),
				slog.Any("error", err),
			)
		}
		results = append(results, result)
	}

	if handler.dependencies.CatalogLoaded != nil {
		result := checkResult{Name: "catalog", IsOK: handler.dependencies.CatalogLoaded()}
		if !result.IsOK {
			isSystemReady = false
		}
		results = append(results, result)
	}

	responseStatus := "ready"
	httpStatus := http.StatusOK
	if !isSystemReady {
		responseStatus = "degraded"
		httpStatus = http.StatusServiceUnavailable
		writer.Header().Set(constants.HeaderContentType, "application/json; charset=utf-8")
		writer.WriteHeader(httpStatus)
	}

	respond.OK(writer, map[string]any{
		constants.FieldStatus: responseStatus,
		constants.FieldChecks: results,
	})
}
