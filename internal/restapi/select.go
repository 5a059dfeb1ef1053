// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package restapi

import (
	"net/http"

	"github.com/taibuivan/sqlrest/internal/platform/apperr"
	"github.com/taibuivan/sqlrest/internal/platform/respond"
	"github.com/taibuivan/sqlrest/internal/selectql"
	"github.com/taibuivan/sqlrest/internal/sqlgen"
	"github.com/taibuivan/sqlrest/internal/sqlrow"
	"github.com/taibuivan/sqlrest/pkg/pagination"
)

// handleSelect serves GET /{schema}/{table}: parse -> build/execute the
// main SELECT (and, when requested, the exact COUNT) -> resolve embeds ->
// encode per the negotiated Accept format, with the accompanying
// Content-Range header.
func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}

	pq, err := h.parseQuery(r, resolved.table)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	explicitColumns := selectql.Columns(pq.selectNodes)
	wantsAll := selectql.HasStar(pq.selectNodes)
	embeds := selectql.Embeds(pq.selectNodes)

	var columns []string
	if !wantsAll {
		columns = explicitColumns
	}
	extra := h.joinKeyColumns(resolved.schema, resolved.name, embeds)
	hidden := hiddenJoinColumns(columns, wantsAll, extra)

	opts := sqlgen.SelectOptions{
		Columns:      columns,
		ExtraColumns: extra,
		Where:        pq.where,
		Order:        pq.order,
		Limit:        pq.limit,
		Offset:       pq.offset,
	}

	query, err := sqlgen.BuildSelect(resolved.table, opts)
	if err != nil {
		respond.Error(w, r, mapSQLGenErr(err))
		return
	}

	guard, err := h.pool.Acquire(r.Context())
	if err != nil {
		respond.Error(w, r, apperr.Pool(err))
		return
	}
	defer guard.Release()

	rows, err := h.runStatementOnConn(r.Context(), guard.Conn(), resolved.role, resolved.claims, query.SQL, query.Params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if len(embeds) > 0 {
		if err := h.resolveEmbeds(r.Context(), guard.Conn(), resolved.schema, resolved.name, resolved.role, resolved.claims, rows, embeds, pq.embedFilters); err != nil {
			respond.Error(w, r, err)
			return
		}
	}
	if len(hidden) > 0 {
		dropColumns(rows, hidden)
	}

	var total *int64
	if pq.prefer.Count {
		countQuery, err := sqlgen.BuildCount(resolved.table, pq.where)
		if err != nil {
			respond.Error(w, r, mapSQLGenErr(err))
			return
		}
		countRows, err := h.runStatementOnConn(r.Context(), guard.Conn(), resolved.role, resolved.claims, countQuery.SQL, countQuery.Params)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if len(countRows) == 1 {
			if v, ok := countRows[0].Get("count"); ok {
				n := toInt64(v)
				total = &n
			}
		}
	}

	offset := int64(0)
	if pq.offset != nil {
		offset = *pq.offset
	}
	contentRange := pagination.ContentRange(offset, int64(len(rows)), total)

	if err := respond.Rows(w, http.StatusOK, contentRange, pq.format, allColumnNames(resolved.table), rows); err != nil {
		respond.Error(w, r, err)
	}
}

// joinKeyColumns lists, for each requested embed, the parent-side column
// the embed engine joins on, so the caller's select= can be widened to
// include it even when the caller didn't ask for it.
func (h *Handler) joinKeyColumns(sourceSchema, sourceTable string, embeds []selectql.Embed) []string {
	if len(embeds) == 0 {
		return nil
	}
	cat := h.catalog.Current()
	if cat == nil {
		return nil
	}
	var cols []string
	for _, e := range embeds {
		if info, ok := cat.FindEmbed(sourceSchema, sourceTable, e.Name, e.FKHint); ok {
			cols = append(cols, info.SourceColumn)
		}
	}
	return cols
}

// hiddenJoinColumns is the subset of extra that must be stripped from the
// response after the embed engine runs: columns added only so the join
// could happen, that the caller's explicit select= (when present) didn't
// itself ask for. A bare select=* always shows every real column.
func hiddenJoinColumns(explicitColumns []string, wantsAll bool, extra []string) []string {
	if wantsAll || len(extra) == 0 {
		return nil
	}
	requested := make(map[string]bool, len(explicitColumns))
	for _, c := range explicitColumns {
		requested[c] = true
	}
	var hidden []string
	for _, c := range extra {
		if !requested[c] {
			hidden = append(hidden, c)
		}
	}
	return hidden
}

// dropColumns removes hidden columns from every row in place.
func dropColumns(rows []sqlrow.Row, hidden []string) {
	for i := range rows {
		for _, c := range hidden {
			rows[i].Delete(c)
		}
	}
}

// toInt64 coerces a scanned COUNT(*) value (an int64 on most drivers, but
// handled generically in case the driver returns another integer width).
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}
