// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package restapi

import (
	"context"
	"database/sql"

	"github.com/taibuivan/sqlrest/internal/catalog"
	"github.com/taibuivan/sqlrest/internal/filterql"
	"github.com/taibuivan/sqlrest/internal/platform/apperr"
	"github.com/taibuivan/sqlrest/internal/selectql"
	"github.com/taibuivan/sqlrest/internal/sqlgen"
	"github.com/taibuivan/sqlrest/internal/sqlrow"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
)

// resolveEmbeds attaches each requested embed onto every row of parent, in
// the order selectql parsed them, on the same connection the parent query
// ran on — each embed's batch lookup is one additional statement on conn,
// preserving the per-request statement ordering guarantee. Embeds nest:
// an embed's own Inner select list is resolved recursively against its
// batch result before it's attached to parent.
func (h *Handler) resolveEmbeds(ctx context.Context, conn *sql.Conn, sourceSchema, sourceTable string, role string, claims *tokenauth.Claims, parent []sqlrow.Row, embeds []selectql.Embed, filters []embedFilter) error {
	cat := h.catalog.Current()

	for _, embed := range embeds {
		info, ok := cat.FindEmbed(sourceSchema, sourceTable, embed.Name, embed.FKHint)
		if !ok {
			return apperr.BadRequest("unknown embed: " + embed.Name)
		}
		target, ok := cat.Table(info.TargetSchema, info.TargetTable)
		if !ok {
			return apperr.Internal(nil)
		}

		if err := h.resolveOneEmbed(ctx, conn, role, claims, target, info, parent, embed, filters); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) resolveOneEmbed(ctx context.Context, conn *sql.Conn, role string, claims *tokenauth.Claims, target *catalog.TableInfo, info catalog.EmbedInfo, parent []sqlrow.Row, embed selectql.Embed, filters []embedFilter) error {
	values := distinctJoinValues(parent, info.SourceColumn)
	alias := embed.Name

	if len(values) == 0 {
		attachEmpty(parent, alias, info.JoinType)
		return nil
	}

	cols := selectql.Columns(embed.Inner)
	if selectql.HasStar(embed.Inner) || len(cols) == 0 {
		cols = allColumnNames(target)
	}

	query, err := sqlgen.BuildEmbedBatch(target, cols, info.TargetColumn, values)
	if err != nil {
		return mapSQLGenErr(err)
	}

	params := query.Params
	where := embedWhereFor(embed.Name, filters, target)
	if len(where) > 0 {
		withFilter, mergeErr := mergeEmbedFilter(target, cols, info.TargetColumn, values, where)
		if mergeErr != nil {
			return mergeErr
		}
		query = withFilter
		params = query.Params
	}

	rows, err := h.runStatementOnConn(ctx, conn, role, claims, query.SQL, params)
	if err != nil {
		return err
	}

	nestedEmbeds := selectql.Embeds(embed.Inner)
	if len(nestedEmbeds) > 0 {
		if err := h.resolveEmbeds(ctx, conn, info.TargetSchema, info.TargetTable, role, claims, rows, nestedEmbeds, nil); err != nil {
			return err
		}
	}

	grouped := groupByColumn(rows, info.TargetColumn)
	attach(parent, alias, info.SourceColumn, info.JoinType, grouped)
	return nil
}

// embedWhereFor collects the filter conditions a dotted query key (e.g.
// `orders.status=eq.shipped`) addressed to this embed, translated against
// the embed's own table.
func embedWhereFor(embedName string, filters []embedFilter, target *catalog.TableInfo) []filterql.Node {
	var nodes []filterql.Node
	for _, f := range filters {
		if f.embed != embedName {
			continue
		}
		if _, ok := target.Column(f.column); !ok {
			continue
		}
		cond, err := filterql.ParseCondition(f.column, f.raw)
		if err != nil {
			continue
		}
		nodes = append(nodes, filterql.Cond{Condition: cond})
	}
	return nodes
}

// mergeEmbedFilter rebuilds the embed batch query as a normal BuildSelect
// call so the embed's own WHERE filters combine with the system-generated
// join-key predicate under one parameterized statement.
func mergeEmbedFilter(target *catalog.TableInfo, cols []string, joinColumn string, values []string, where []filterql.Node) (sqlgen.Query, error) {
	inList := make([]string, len(values))
	copy(inList, values)
	joinCond := filterql.Cond{Condition: filterql.Condition{Column: joinColumn, Op: filterql.OpIn, List: inList}}
	combined := append([]filterql.Node{joinCond}, where...)
	return sqlgen.BuildSelect(target, sqlgen.SelectOptions{Columns: cols, ExtraColumns: []string{joinColumn}, Where: combined})
}

// allColumnNames lists every column of table in catalog order.
func allColumnNames(table *catalog.TableInfo) []string {
	out := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		out[i] = c.Name
	}
	return out
}

func mapSQLGenErr(err error) error {
	if bad, ok := err.(*sqlgen.BadRequestError); ok {
		return apperr.BadRequest(bad.Reason)
	}
	return apperr.Internal(err)
}

// distinctJoinValues collects the deduplicated, non-null string values of
// col across rows, in first-seen order.
func distinctJoinValues(rows []sqlrow.Row, col string) []string {
	seen := make(map[string]bool, len(rows))
	var out []string
	for _, row := range rows {
		v, ok := row.StringValue(col)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// groupByColumn indexes rows by their value of col, preserving the order
// rows were returned in within each group.
func groupByColumn(rows []sqlrow.Row, col string) map[string][]sqlrow.Row {
	groups := make(map[string][]sqlrow.Row, len(rows))
	for _, row := range rows {
		v, ok := row.StringValue(col)
		if !ok {
			continue
		}
		groups[v] = append(groups[v], row)
	}
	return groups
}

// attach sets each parent row's embed field from grouped, matched by its
// value of sourceColumn: a many-to-one embed gets the single matching row
// or null, a one-to-many embed gets the (possibly empty) matching slice.
func attach(parent []sqlrow.Row, alias, sourceColumn string, joinType catalog.JoinType, grouped map[string][]sqlrow.Row) {
	for i := range parent {
		key, ok := parent[i].StringValue(sourceColumn)
		var matches []sqlrow.Row
		if ok {
			matches = grouped[key]
		}
		setEmbedField(&parent[i], alias, joinType, matches)
	}
}

// attachEmpty is the no-join-values case: every parent row gets null
// (many-to-one) or an empty array (one-to-many) — the per-cardinality
// behavior spec.md calls for, not a blanket empty array.
func attachEmpty(parent []sqlrow.Row, alias string, joinType catalog.JoinType) {
	for i := range parent {
		setEmbedField(&parent[i], alias, joinType, nil)
	}
}

func setEmbedField(row *sqlrow.Row, alias string, joinType catalog.JoinType, matches []sqlrow.Row) {
	if joinType == catalog.OneToMany {
		if matches == nil {
			matches = []sqlrow.Row{}
		}
		row.Set(alias, matches)
		return
	}
	if len(matches) == 0 {
		row.Set(alias, nil)
		return
	}
	row.Set(alias, matches[0])
}
