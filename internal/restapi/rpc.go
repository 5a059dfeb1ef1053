// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package restapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/sqlrest/internal/platform/apperr"
	"github.com/taibuivan/sqlrest/internal/platform/respond"
	"github.com/taibuivan/sqlrest/internal/queryopts"
	"github.com/taibuivan/sqlrest/internal/sqlgen"
)

// RPC serves POST /rpc/{name}: calls the named stored procedure with the
// request body's top-level keys bound as its arguments.
func (h *Handler) RPC(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respond.Error(w, r, apperr.BadRequest("missing procedure name"))
		return
	}

	claims, role, err := h.auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		respond.Error(w, r, apperr.Unauthorized(err.Error()))
		return
	}

	argNames, argValues, err := parseRPCBody(r)
	if err != nil {
		respond.Error(w, r, apperr.BadRequest(err.Error()))
		return
	}

	query, err := sqlgen.BuildCall(name, argNames, argValues)
	if err != nil {
		respond.Error(w, r, mapSQLGenErr(err))
		return
	}

	rows, err := h.runStatement(r.Context(), role, claims, query.SQL, query.Params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	format := queryopts.ParseAccept(r.Header.Get("Accept"))
	var allColumns []string
	if len(rows) > 0 {
		allColumns = rows[0].Columns()
	}
	if err := respond.Rows(w, http.StatusOK, "", format, allColumns, rows); err != nil {
		respond.Error(w, r, err)
	}
}

// parseRPCBody reads the RPC call's argument object. A GET-style call with
// no body (an empty or absent JSON object) calls the procedure with no
// arguments.
func parseRPCBody(r *http.Request) (argNames, argValues []string, err error) {
	if r.ContentLength == 0 {
		return nil, nil, nil
	}
	objects, err := decodeBodyObjects(r.Body)
	if err != nil {
		return nil, nil, err
	}
	if len(objects) != 1 {
		return nil, nil, errRPCBodyShape
	}
	columns, rows, err := flattenObjects(objects)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return columns, nil, nil
	}
	return columns, rows[0], nil
}

var errRPCBodyShape = errors.New("rpc body must be a single JSON object")
