// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package restapi

import (
	"log/slog"
	"net/http"

	"github.com/taibuivan/sqlrest/internal/catalog"
	"github.com/taibuivan/sqlrest/internal/filterql"
	"github.com/taibuivan/sqlrest/internal/platform/apperr"
	"github.com/taibuivan/sqlrest/internal/platform/constants"
	"github.com/taibuivan/sqlrest/internal/platform/ctxutil"
	"github.com/taibuivan/sqlrest/internal/platform/respond"
	"github.com/taibuivan/sqlrest/internal/queryopts"
	"github.com/taibuivan/sqlrest/internal/session"
	"github.com/taibuivan/sqlrest/internal/sqlgen"
	"github.com/taibuivan/sqlrest/internal/sqlrow"
	"github.com/taibuivan/sqlrest/pkg/pagination"
)

// handleInsert serves POST /{schema}/{table}: INSERT, or a MERGE upsert
// when `Prefer: resolution=merge-duplicates` is set.
func (h *Handler) handleInsert(w http.ResponseWriter, r *http.Request) {
	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}

	columns, rows, err := parseInsertBody(r.Body)
	if err != nil {
		respond.Error(w, r, apperr.BadRequest(err.Error()))
		return
	}
	if err := validateColumns(resolved.table, columns); err != nil {
		respond.Error(w, r, err)
		return
	}

	prefer := queryopts.ParsePrefer(r.Header.Get(constants.HeaderPrefer))

	var query sqlgen.Query
	if prefer.Resolution == "merge-duplicates" {
		query, err = sqlgen.BuildUpsert(resolved.table, columns, rows)
	} else {
		query, err = sqlgen.BuildInsert(resolved.table, columns, rows)
	}
	if err != nil {
		respond.Error(w, r, mapSQLGenErr(err))
		return
	}

	outRows, err := h.runMutation(r, resolved, prefer, query)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.writeMutationResponse(w, r, prefer, http.StatusCreated, queryopts.ParseAccept(r.Header.Get(constants.HeaderAccept)), allColumnNames(resolved.table), outRows)
}

// handleUpdate serves PATCH /{schema}/{table}: UPDATE ... WHERE <query
// filters>, body is a single JSON object of columns to set.
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}

	columns, values, err := parseUpdateBody(r.Body)
	if err != nil {
		respond.Error(w, r, apperr.BadRequest(err.Error()))
		return
	}
	if err := validateColumns(resolved.table, columns); err != nil {
		respond.Error(w, r, err)
		return
	}

	where, err := filtersFromQuery(r, resolved.table)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	prefer := queryopts.ParsePrefer(r.Header.Get(constants.HeaderPrefer))

	query, err := sqlgen.BuildUpdate(resolved.table, columns, values, where)
	if err != nil {
		respond.Error(w, r, mapSQLGenErr(err))
		return
	}

	outRows, err := h.runMutation(r, resolved, prefer, query)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.writeMutationResponse(w, r, prefer, http.StatusOK, queryopts.ParseAccept(r.Header.Get(constants.HeaderAccept)), allColumnNames(resolved.table), outRows)
}

// handleDelete serves DELETE /{schema}/{table}: DELETE ... WHERE <query
// filters>. An unfiltered DELETE removes every row in the table — this is
// a documented hazard of the contract, not a bug, so it is not special
// cased here beyond a warning log.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}

	where, err := filtersFromQuery(r, resolved.table)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if len(where) == 0 {
		ctxutil.GetLogger(r.Context()).WarnContext(r.Context(), "unfiltered_delete",
			slog.String("table", resolved.schema+"."+resolved.name),
			slog.String("request_id", ctxutil.GetRequestID(r.Context())),
		)
	}

	prefer := queryopts.ParsePrefer(r.Header.Get(constants.HeaderPrefer))

	query, err := sqlgen.BuildDelete(resolved.table, where)
	if err != nil {
		respond.Error(w, r, mapSQLGenErr(err))
		return
	}

	outRows, err := h.runMutation(r, resolved, prefer, query)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.writeMutationResponse(w, r, prefer, http.StatusOK, queryopts.ParseAccept(r.Header.Get(constants.HeaderAccept)), allColumnNames(resolved.table), outRows)
}

// runMutation wraps query in the transaction shape Prefer: tx= selects and
// executes it on a freshly acquired connection.
func (h *Handler) runMutation(r *http.Request, resolved *resolvedTable, prefer queryopts.Preferences, query sqlgen.Query) ([]sqlrow.Row, error) {
	txKind := session.TxCommit
	if prefer.Tx == queryopts.TxRollback {
		txKind = session.TxRollback
	}
	wrapped := session.WrapDML(query.SQL, txKind)
	return h.runStatement(r.Context(), resolved.role, resolved.claims, wrapped, query.Params)
}

// writeMutationResponse renders a mutation's OUTPUT rows per Prefer:
// return=, matching the three-way contract every table mutation shares.
func (h *Handler) writeMutationResponse(w http.ResponseWriter, r *http.Request, prefer queryopts.Preferences, successStatus int, format queryopts.Format, allColumns []string, rows []sqlrow.Row) {
	switch prefer.Return {
	case queryopts.ReturnMinimal:
		respond.NoContent(w)
	case queryopts.ReturnHeadersOnly:
		respond.HeadersOnly(w, successStatus, pagination.HeadersOnlyContentRange(int64(len(rows))))
	default:
		if err := respond.Rows(w, successStatus, "", format, allColumns, rows); err != nil {
			respond.Error(w, r, err)
		}
	}
}

// validateColumns rejects a mutation body that names a column the table
// doesn't have.
func validateColumns(table *catalog.TableInfo, columns []string) error {
	for _, c := range columns {
		if _, ok := table.Column(c); !ok {
			return apperr.BadRequest("unknown column: " + c)
		}
	}
	return nil
}

// filtersFromQuery parses the request's plain `column=op.value` query
// parameters into a WHERE predicate, ignoring select=/order=/limit=/
// offset= and dotted embed-filter keys, which have no meaning on a
// mutation request.
func filtersFromQuery(r *http.Request, table *catalog.TableInfo) ([]filterql.Node, error) {
	where, _, err := buildFilters(r.URL.Query(), table)
	if err != nil {
		return nil, err
	}
	return where, nil
}
