// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sqlgen translates parsed filter/select/order trees into
parameterized T-SQL. Every generator returns a [Query]: the statement text
with `@P1, @P2, …` placeholders and the ordered parameter values to bind
to them. Generators never execute anything — [internal/mssqlpool] and
[internal/restapi] own the connection.
*/
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/taibuivan/sqlrest/internal/catalog"
	"github.com/taibuivan/sqlrest/internal/filterql"
	"github.com/taibuivan/sqlrest/internal/queryopts"
	"github.com/taibuivan/sqlrest/internal/sqlident"
)

// Query is a generated statement paired with its ordered parameter values.
type Query struct {
	SQL    string
	Params []string
}

// BadRequestError signals a request that sqlgen cannot translate into a
// valid statement — a mutation with no columns, a table with neither a primary key
// nor a unique constraint to upsert against, and the like. The handler
// layer maps it to HTTP 400.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string { return "sqlgen: " + e.Reason }

// paramCounter hands out sequential @P placeholders and collects the
// literal values bound to them, in order.
type paramCounter struct {
	params []string
}

func newParamCounter(start int) *paramCounter {
	return &paramCounter{params: make([]string, 0, 8)}
}

func (p *paramCounter) bind(value string) string {
	p.params = append(p.params, value)
	return fmt.Sprintf("@P%d", len(p.params))
}

// SelectOptions configures [BuildSelect].
type SelectOptions struct {
	// Columns is the explicit projection (from selectql), empty/nil for
	// "all catalog columns".
	Columns []string
	// ExtraColumns are appended to Columns (deduplicated) — used by the
	// embed engine to force a join-key column into the parent projection
	// even when the caller's select= didn't ask for it.
	ExtraColumns []string
	CountOnly    bool
	Where        []filterql.Node
	Order        []queryopts.OrderTerm
	Limit        *int64
	Offset       *int64
}

// BuildSelect generates a SELECT against table per opts.
func BuildSelect(table *catalog.TableInfo, opts SelectOptions) (Query, error) {
	pc := newParamCounter(0)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(projection(table, opts))
	b.WriteString(" FROM ")
	b.WriteString(table.FullName())

	if len(opts.Where) > 0 {
		where, err := buildWhere(opts.Where, pc)
		if err != nil {
			return Query{}, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if !opts.CountOnly {
		paginated := opts.Limit != nil || opts.Offset != nil
		order := opts.Order
		if len(order) == 0 && paginated {
			order = defaultOrder(table)
		}
		if len(order) > 0 {
			b.WriteString(" ORDER BY ")
			b.WriteString(orderClause(order))
		}
		if paginated {
			offset := int64(0)
			if opts.Offset != nil {
				offset = *opts.Offset
			}
			fmt.Fprintf(&b, " OFFSET %d ROWS", offset)
			if opts.Limit != nil {
				fmt.Fprintf(&b, " FETCH NEXT %d ROWS ONLY", *opts.Limit)
			}
		}
	}

	return Query{SQL: b.String(), Params: pc.params}, nil
}

func projection(table *catalog.TableInfo, opts SelectOptions) string {
	if opts.CountOnly {
		return "COUNT(*) AS [count]"
	}
	cols := opts.Columns
	if len(cols) == 0 {
		cols = allColumnNames(table)
	}
	cols = appendUnique(cols, opts.ExtraColumns)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sqlident.QuoteIdent(c)
	}
	return strings.Join(quoted, ",")
}

func allColumnNames(table *catalog.TableInfo) []string {
	out := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		out[i] = c.Name
	}
	return out
}

func appendUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, c := range base {
		seen[strings.ToLower(c)] = true
	}
	out := base
	for _, c := range extra {
		if seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		out = append(out, c)
	}
	return out
}

// defaultOrder is the deterministic ordering applied to paginated queries
// with no explicit `order`: the table's primary key, or `(SELECT NULL)`
// if it has none.
func defaultOrder(table *catalog.TableInfo) []queryopts.OrderTerm {
	if len(table.PrimaryKey) == 0 {
		return []queryopts.OrderTerm{{Column: "(SELECT NULL)", Direction: queryopts.Asc}}
	}
	terms := make([]queryopts.OrderTerm, len(table.PrimaryKey))
	for i, c := range table.PrimaryKey {
		terms[i] = queryopts.OrderTerm{Column: c, Direction: queryopts.Asc}
	}
	return terms
}

func orderClause(terms []queryopts.OrderTerm) string {
	parts := make([]string, 0, len(terms)*2)
	for _, t := range terms {
		col := quoteOrderColumn(t.Column)
		switch t.Nulls {
		case queryopts.NullsLast:
			parts = append(parts, fmt.Sprintf("CASE WHEN %s IS NULL THEN 1 ELSE 0 END", col))
		case queryopts.NullsFirst:
			parts = append(parts, fmt.Sprintf("CASE WHEN %s IS NULL THEN 0 ELSE 1 END", col))
		}
		seg := col
		if t.Direction == queryopts.Desc {
			seg += " DESC"
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, ", ")
}

// quoteOrderColumn passes the `(SELECT NULL)` sentinel through unquoted;
// every real column name gets bracket-quoted.
func quoteOrderColumn(col string) string {
	if col == "(SELECT NULL)" {
		return col
	}
	return sqlident.QuoteIdent(col)
}

// buildWhere renders a top-level implicit-AND list of filter nodes into
// one parenthesized WHERE predicate.
func buildWhere(nodes []filterql.Node, pc *paramCounter) (string, error) {
	var top filterql.Node
	if len(nodes) == 1 {
		top = nodes[0]
	} else {
		top = filterql.And{Children: nodes}
	}
	rendered, err := renderNode(top, pc)
	if err != nil {
		return "", err
	}
	return "(" + rendered + ")", nil
}

func renderNode(n filterql.Node, pc *paramCounter) (string, error) {
	switch v := n.(type) {
	case filterql.Cond:
		return renderCondition(v.Condition, pc)
	case filterql.And:
		return renderLogic(v.Children, "AND", pc)
	case filterql.Or:
		return renderLogic(v.Children, "OR", pc)
	default:
		return "", fmt.Errorf("sqlgen: unknown filter node %T", n)
	}
}

func renderLogic(children []filterql.Node, joiner string, pc *paramCounter) (string, error) {
	parts := make([]string, len(children))
	for i, c := range children {
		rendered, err := renderNode(c, pc)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + rendered + ")"
	}
	return strings.Join(parts, " "+joiner+" "), nil
}

func renderCondition(cond filterql.Condition, pc *paramCounter) (string, error) {
	col := sqlident.QuoteIdent(cond.Column)
	pred, err := renderPredicate(col, cond, pc)
	if err != nil {
		return "", err
	}
	if cond.Negated {
		return "NOT (" + pred + ")", nil
	}
	return pred, nil
}

func renderPredicate(col string, cond filterql.Condition, pc *paramCounter) (string, error) {
	switch cond.Op {
	case filterql.OpEq:
		return col + " = " + pc.bind(cond.Value), nil
	case filterql.OpNeq:
		return col + " <> " + pc.bind(cond.Value), nil
	case filterql.OpGt:
		return col + " > " + pc.bind(cond.Value), nil
	case filterql.OpGte:
		return col + " >= " + pc.bind(cond.Value), nil
	case filterql.OpLt:
		return col + " < " + pc.bind(cond.Value), nil
	case filterql.OpLte:
		return col + " <= " + pc.bind(cond.Value), nil
	case filterql.OpLike, filterql.OpIlike:
		return col + " LIKE " + pc.bind(cond.Value), nil
	case filterql.OpFts:
		return fmt.Sprintf("CONTAINS(%s, %s)", col, pc.bind(cond.Value)), nil
	case filterql.OpIn:
		if len(cond.List) == 0 {
			// An empty `in.()` list can never match any row; rewriting to
			// a constant-false predicate avoids the invalid `IN ()` syntax
			// without rejecting the request outright.
			return "1=0", nil
		}
		placeholders := make([]string, len(cond.List))
		for i, v := range cond.List {
			placeholders[i] = pc.bind(v)
		}
		return col + " IN (" + strings.Join(placeholders, ",") + ")", nil
	case filterql.OpIs:
		switch cond.Is {
		case filterql.IsNull:
			return col + " IS NULL", nil
		case filterql.IsTrue:
			return col + " = 1", nil
		case filterql.IsFalse:
			return col + " = 0", nil
		}
	}
	return "", fmt.Errorf("sqlgen: unsupported operator %q", cond.Op)
}

// BuildCount generates a `COUNT(*)` query restricted by the same filters
// as the main SELECT, with no projection, ordering, or pagination.
func BuildCount(table *catalog.TableInfo, where []filterql.Node) (Query, error) {
	return BuildSelect(table, SelectOptions{CountOnly: true, Where: where})
}

func outputColumns(table *catalog.TableInfo, prefix string) string {
	parts := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		parts[i] = prefix + "." + sqlident.QuoteIdent(c.Name)
	}
	return strings.Join(parts, ", ")
}

// BuildInsert generates a multi-row INSERT. columns is the ordered column
// list (the union of every row's supplied keys, per caller contract);
// rows holds one literal value per column per row — a row missing a
// column's value binds an empty-string literal.
func BuildInsert(table *catalog.TableInfo, columns []string, rows [][]string) (Query, error) {
	if len(columns) == 0 {
		return Query{}, &BadRequestError{Reason: "insert requires at least one column"}
	}
	pc := newParamCounter(0)

	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = sqlident.QuoteIdent(c)
	}

	valueGroups := make([]string, len(rows))
	for i, row := range rows {
		placeholders := make([]string, len(columns))
		for j := range columns {
			val := ""
			if j < len(row) {
				val = row[j]
			}
			placeholders[j] = pc.bind(val)
		}
		valueGroups[i] = "(" + strings.Join(placeholders, ",") + ")"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) OUTPUT %s VALUES %s",
		table.FullName(),
		strings.Join(quotedCols, ","),
		outputColumns(table, "inserted"),
		strings.Join(valueGroups, ", "),
	)
	return Query{SQL: sql, Params: pc.params}, nil
}

// matchColumns picks the column set an UPSERT matches existing rows on:
// the primary key, or failing that the first unique constraint.
func matchColumns(table *catalog.TableInfo) ([]string, error) {
	if len(table.PrimaryKey) > 0 {
		return table.PrimaryKey, nil
	}
	if len(table.UniqueConstraints) > 0 {
		return table.UniqueConstraints[0], nil
	}
	return nil, &BadRequestError{Reason: fmt.Sprintf("table %s has no primary key or unique constraint to upsert against", table.FullName())}
}

// BuildUpsert generates a MERGE statement matching on the table's primary
// key (or its first unique constraint, if it has no primary key).
func BuildUpsert(table *catalog.TableInfo, columns []string, rows [][]string) (Query, error) {
	if len(rows) != 1 {
		return Query{}, &BadRequestError{Reason: "upsert supports exactly one row per request"}
	}
	match, err := matchColumns(table)
	if err != nil {
		return Query{}, err
	}
	for _, m := range match {
		if !containsFold(columns, m) {
			return Query{}, &BadRequestError{Reason: fmt.Sprintf("upsert body missing match column %q", m)}
		}
	}

	pc := newParamCounter(0)
	row := rows[0]

	sourceCols := make([]string, len(columns))
	sourceSelect := make([]string, len(columns))
	for i, c := range columns {
		val := ""
		if i < len(row) {
			val = row[i]
		}
		sourceCols[i] = sqlident.QuoteIdent(c)
		sourceSelect[i] = pc.bind(val) + " AS " + sqlident.QuoteIdent(c)
	}

	onParts := make([]string, len(match))
	for i, m := range match {
		q := sqlident.QuoteIdent(m)
		onParts[i] = "target." + q + " = source." + q
	}

	setParts := make([]string, 0, len(columns))
	for _, c := range columns {
		if containsFold(match, c) {
			continue
		}
		q := sqlident.QuoteIdent(c)
		setParts = append(setParts, "target."+q+" = source."+q)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE %s AS target\n", table.FullName())
	fmt.Fprintf(&b, "USING (SELECT %s) AS source (%s)\n", strings.Join(sourceSelect, ", "), strings.Join(sourceCols, ","))
	fmt.Fprintf(&b, "  ON %s\n", strings.Join(onParts, " AND "))
	if len(setParts) > 0 {
		fmt.Fprintf(&b, "WHEN MATCHED THEN UPDATE SET %s\n", strings.Join(setParts, ", "))
	}
	fmt.Fprintf(&b, "WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)\n",
		strings.Join(sourceCols, ","), prefixEach(sourceCols, "source."))
	b.WriteString("OUTPUT inserted.*;")

	return Query{SQL: b.String(), Params: pc.params}, nil
}

func prefixEach(cols []string, prefix string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ",")
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// BuildUpdate generates an UPDATE ... SET ... OUTPUT inserted.* [WHERE ...].
// SET parameters occupy @P1..@Pk; the WHERE clause's parameters continue
// from @P(k+1).
func BuildUpdate(table *catalog.TableInfo, columns, values []string, where []filterql.Node) (Query, error) {
	if len(columns) == 0 {
		return Query{}, &BadRequestError{Reason: "update requires at least one column"}
	}
	pc := newParamCounter(0)
	setParts := make([]string, len(columns))
	for i, c := range columns {
		val := ""
		if i < len(values) {
			val = values[i]
		}
		setParts[i] = sqlident.QuoteIdent(c) + " = " + pc.bind(val)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s OUTPUT %s", table.FullName(), strings.Join(setParts, ", "), outputColumns(table, "inserted"))

	if len(where) > 0 {
		clause, err := buildWhere(where, pc)
		if err != nil {
			return Query{}, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(clause)
	}

	return Query{SQL: b.String(), Params: pc.params}, nil
}

// BuildDelete generates a DELETE ... OUTPUT deleted.* [WHERE ...]. An
// empty where list deletes every row in the table — callers are expected
// to log this per their own auditing policy before invoking it.
func BuildDelete(table *catalog.TableInfo, where []filterql.Node) (Query, error) {
	pc := newParamCounter(0)
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s OUTPUT %s", table.FullName(), outputColumns(table, "deleted"))

	if len(where) > 0 {
		clause, err := buildWhere(where, pc)
		if err != nil {
			return Query{}, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(clause)
	}

	return Query{SQL: b.String(), Params: pc.params}, nil
}

// BuildEmbedBatch generates the batched lookup query the embed engine
// issues for one relationship: project cols plus joinColumn, restricted to
// the distinct join-key values collected from the parent result set. This
// is a system-generated predicate, not a user filter, so unlike
// [BuildSelect] it emits a bare `WHERE col IN (...)` with no enclosing
// parens.
func BuildEmbedBatch(table *catalog.TableInfo, cols []string, joinColumn string, values []string) (Query, error) {
	if len(values) == 0 {
		return Query{}, &BadRequestError{Reason: "embed batch requires at least one join value"}
	}
	pc := newParamCounter(0)
	projCols := appendUnique(cols, []string{joinColumn})
	quotedProj := make([]string, len(projCols))
	for i, c := range projCols {
		quotedProj[i] = sqlident.QuoteIdent(c)
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = pc.bind(v)
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(quotedProj, ","), table.FullName(), sqlident.QuoteIdent(joinColumn), strings.Join(placeholders, ","))
	return Query{SQL: sql, Params: pc.params}, nil
}

// BuildCall generates an `EXEC [name] @a = @P1, @b = @P2, …` stored
// procedure invocation, argNames/argValues drawn from the RPC request
// body's keys/values in matching order. An empty argNames list
// calls the procedure with no arguments.
func BuildCall(name string, argNames, argValues []string) (Query, error) {
	pc := newParamCounter(0)
	if len(argNames) == 0 {
		return Query{SQL: "EXEC " + sqlident.QuoteIdent(name)}, nil
	}
	parts := make([]string, len(argNames))
	for i, a := range argNames {
		val := ""
		if i < len(argValues) {
			val = argValues[i]
		}
		parts[i] = "@" + a + " = " + pc.bind(val)
	}
	sql := fmt.Sprintf("EXEC %s %s", sqlident.QuoteIdent(name), strings.Join(parts, ", "))
	return Query{SQL: sql, Params: pc.params}, nil
}
