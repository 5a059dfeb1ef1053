// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package restapi implements the generated REST surface: table/view CRUD,
the embed engine, and stored-procedure RPC. It wires together every other
internal package — catalog resolution, filter/select/order parsing,
token verification, SQL generation, session prologue construction, and
the bounded connection pool — into the per-request flow.
*/
package restapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/sqlrest/internal/catalog"
	"github.com/taibuivan/sqlrest/internal/mssqlpool"
	"github.com/taibuivan/sqlrest/internal/platform/apperr"
	"github.com/taibuivan/sqlrest/internal/platform/respond"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
)

// Options configures a [Handler] beyond its collaborators.
type Options struct {
	// DefaultSchema is applied when a table path has a single segment.
	DefaultSchema string
	// ContextClaims lists additional JWT claim names published to
	// SESSION_CONTEXT() on every request, beyond "sub" and "role".
	ContextClaims []string
	// SlowQueryThreshold logs any statement batch slower than this at
	// warn level; zero disables slow-query logging.
	SlowQueryThreshold time.Duration
	// AllowedSchemas restricts which schemas may be addressed by a table
	// path, beyond what the catalog itself loaded; empty means every
	// schema the catalog surfaced is reachable.
	AllowedSchemas []string
}

// Handler serves the table/view/RPC HTTP surface against one catalog and
// connection pool.
type Handler struct {
	catalog            *catalog.Store
	pool               *mssqlpool.Pool
	auth               *tokenauth.Verifier
	defaultSchema      string
	contextClaims      []string
	slowQueryThreshold time.Duration
	allowedSchemas     map[string]bool
}

// NewHandler constructs a Handler. store must have completed at least one
// [catalog.Store.Reload] before the handler serves any request.
func NewHandler(store *catalog.Store, pool *mssqlpool.Pool, verifier *tokenauth.Verifier, opts Options) *Handler {
	schema := opts.DefaultSchema
	if schema == "" {
		schema = "dbo"
	}
	var allowed map[string]bool
	if len(opts.AllowedSchemas) > 0 {
		allowed = make(map[string]bool, len(opts.AllowedSchemas))
		for _, s := range opts.AllowedSchemas {
			allowed[strings.ToLower(s)] = true
		}
	}
	return &Handler{
		catalog:            store,
		pool:               pool,
		auth:               verifier,
		defaultSchema:      schema,
		contextClaims:      opts.ContextClaims,
		slowQueryThreshold: opts.SlowQueryThreshold,
		allowedSchemas:     allowed,
	}
}

// resolvedTable is the per-request (schema, table, *catalog.TableInfo,
// role, claims) tuple every handler resolves before touching sqlgen.
type resolvedTable struct {
	schema string
	name   string
	table  *catalog.TableInfo
	role   string
	claims *tokenauth.Claims
}

// resolve authenticates the request and looks up the path's (schema,
// table) against the current catalog snapshot.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*resolvedTable, bool) {
	schema, name := h.pathSchemaTable(r)

	if h.allowedSchemas != nil && !h.allowedSchemas[strings.ToLower(schema)] {
		respond.Error(w, r, apperr.NotFound(schema+"."+name))
		return nil, false
	}

	claims, role, err := h.auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		respond.Error(w, r, apperr.Unauthorized(err.Error()))
		return nil, false
	}

	cat := h.catalog.Current()
	if cat == nil {
		respond.Error(w, r, apperr.Internal(nil))
		return nil, false
	}
	table, ok := cat.Table(schema, name)
	if !ok {
		respond.Error(w, r, apperr.NotFound(schema+"."+name))
		return nil, false
	}

	return &resolvedTable{schema: schema, name: name, table: table, role: role, claims: claims}, true
}

// pathSchemaTable extracts the {schema}/{table} or {table} path segments.
// chi registers both a one-segment and a two-segment route pattern onto
// the same handler (see [Handler.Mount]); the missing param is simply empty.
func (h *Handler) pathSchemaTable(r *http.Request) (schema, table string) {
	schema = chi.URLParam(r, "schema")
	table = chi.URLParam(r, "table")
	if schema == "" {
		schema = h.defaultSchema
	}
	return schema, table
}

// Table dispatches a table/view request by HTTP method.
func (h *Handler) Table(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleSelect(w, r)
	case http.MethodPost:
		h.handleInsert(w, r)
	case http.MethodPatch:
		h.handleUpdate(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		respond.Error(w, r, apperr.BadRequest("method not allowed: "+r.Method))
	}
}

// Mount registers the table/view and RPC routes onto r: both the
// one-segment (`/{table}`) and two-segment (`/{schema}/{table}`) path
// forms per method, plus `POST /rpc/{name}`.
func (h *Handler) Mount(r chi.Router) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete} {
		r.Method(method, "/{table}", http.HandlerFunc(h.Table))
		r.Method(method, "/{schema}/{table}", http.HandlerFunc(h.Table))
	}
	r.Post("/rpc/{name}", h.RPC)
}

// splitDotted splits a dotted embed-filter key ("orders.status") into its
// embed name and the forwarded tail ("status"). ok is false for a key with
// no dot.
func splitDotted(key string) (embed, tail string, ok bool) {
	i := strings.IndexByte(key, '.')
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
