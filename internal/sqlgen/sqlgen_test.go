// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sqlgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/catalog"
	"github.com/taibuivan/sqlrest/internal/filterql"
	"github.com/taibuivan/sqlrest/internal/queryopts"
	"github.com/taibuivan/sqlrest/internal/sqlgen"
)

func peopleTable() *catalog.TableInfo {
	return &catalog.TableInfo{
		Schema:     "dbo",
		Name:       "people",
		PrimaryKey: []string{"id"},
		Columns: []catalog.ColumnInfo{
			{Name: "id", IsIdentity: true},
			{Name: "name"},
			{Name: "age"},
		},
	}
}

func customersTable() *catalog.TableInfo {
	return &catalog.TableInfo{
		Schema:     "dbo",
		Name:       "customers",
		PrimaryKey: []string{"id"},
		Columns: []catalog.ColumnInfo{
			{Name: "id", IsIdentity: true},
			{Name: "name"},
		},
	}
}

func ordersTable() *catalog.TableInfo {
	return &catalog.TableInfo{
		Schema:     "dbo",
		Name:       "orders",
		PrimaryKey: []string{"id"},
		Columns: []catalog.ColumnInfo{
			{Name: "id", IsIdentity: true},
			{Name: "customer_id"},
		},
	}
}

// Scenario 1: GET /people?name=eq.alice&order=age.desc.nullslast&limit=10
func TestBuildSelect_Scenario1(t *testing.T) {
	cond, err := filterql.ParseCondition("name", "eq.alice")
	require.NoError(t, err)
	limit := int64(10)

	q, err := sqlgen.BuildSelect(peopleTable(), sqlgen.SelectOptions{
		Where: []filterql.Node{filterql.Cond{Condition: cond}},
		Order: []queryopts.OrderTerm{{Column: "age", Direction: queryopts.Desc, Nulls: queryopts.NullsLast}},
		Limit: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT [id],[name],[age] FROM [dbo].[people] WHERE ([name] = @P1) "+
			"ORDER BY CASE WHEN [age] IS NULL THEN 1 ELSE 0 END, [age] DESC "+
			"OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY",
		q.SQL)
	assert.Equal(t, []string{"alice"}, q.Params)
}

// Scenario 2: GET /people?or=(age.gt.18,name.like.*a*)
func TestBuildSelect_Scenario2(t *testing.T) {
	nodes, err := filterql.ParseLogicGroup("age.gt.18,name.like.*a*")
	require.NoError(t, err)
	or := filterql.Or{Children: nodes}

	q, err := sqlgen.BuildSelect(peopleTable(), sqlgen.SelectOptions{
		Where: []filterql.Node{or},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT [id],[name],[age] FROM [dbo].[people] WHERE (([age] > @P1) OR ([name] LIKE @P2))",
		q.SQL)
	assert.Equal(t, []string{"18", "%a%"}, q.Params)
}

// Scenario 3: POST /people body [{"name":"bob"},{"name":"eve"}]
func TestBuildInsert_Scenario3(t *testing.T) {
	q, err := sqlgen.BuildInsert(peopleTable(), []string{"name"}, [][]string{{"bob"}, {"eve"}})
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO [dbo].[people] ([name]) OUTPUT inserted.[id], inserted.[name], inserted.[age] VALUES (@P1), (@P2)",
		q.SQL)
	assert.Equal(t, []string{"bob", "eve"}, q.Params)
}

// Scenario 4: PATCH /people?id=eq.7 body {"name":"bob"}
func TestBuildUpdate_Scenario4(t *testing.T) {
	cond, err := filterql.ParseCondition("id", "eq.7")
	require.NoError(t, err)

	q, err := sqlgen.BuildUpdate(peopleTable(), []string{"name"}, []string{"bob"},
		[]filterql.Node{filterql.Cond{Condition: cond}})
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE [dbo].[people] SET [name] = @P1 OUTPUT inserted.[id], inserted.[name], inserted.[age] WHERE ([id] = @P2)",
		q.SQL)
	assert.Equal(t, []string{"bob", "7"}, q.Params)
}

// Scenario 5: GET /orders?select=id,customer(name) — parent half.
func TestBuildSelect_Scenario5_Parent(t *testing.T) {
	q, err := sqlgen.BuildSelect(ordersTable(), sqlgen.SelectOptions{
		Columns:      []string{"id"},
		ExtraColumns: []string{"customer_id"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT [id],[customer_id] FROM [dbo].[orders]", q.SQL)
}

// Scenario 5: embed half.
func TestBuildEmbedBatch_Scenario5(t *testing.T) {
	q, err := sqlgen.BuildEmbedBatch(customersTable(), []string{"name"}, "id", []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT [name],[id] FROM [dbo].[customers] WHERE [id] IN (@P1,@P2)", q.SQL)
	assert.Equal(t, []string{"1", "2"}, q.Params)
}

func TestBuildDelete_NoFilter(t *testing.T) {
	q, err := sqlgen.BuildDelete(peopleTable(), nil)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM [dbo].[people] OUTPUT deleted.[id], deleted.[name], deleted.[age]", q.SQL)
}

func TestBuildDelete_WithFilter(t *testing.T) {
	cond, err := filterql.ParseCondition("id", "eq.1")
	require.NoError(t, err)
	q, err := sqlgen.BuildDelete(peopleTable(), []filterql.Node{filterql.Cond{Condition: cond}})
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "WHERE ([id] = @P1)")
}

func TestBuildSelect_EmptyInRewrittenToFalse(t *testing.T) {
	cond, err := filterql.ParseCondition("id", "in.()")
	require.NoError(t, err)
	q, err := sqlgen.BuildSelect(peopleTable(), sqlgen.SelectOptions{
		Where: []filterql.Node{filterql.Cond{Condition: cond}},
	})
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "WHERE (1=0)")
}

func TestBuildSelect_OrderWithoutPaginationOmitsOffset(t *testing.T) {
	q, err := sqlgen.BuildSelect(peopleTable(), sqlgen.SelectOptions{
		Order: []queryopts.OrderTerm{{Column: "name", Direction: queryopts.Asc}},
	})
	require.NoError(t, err)
	assert.NotContains(t, q.SQL, "OFFSET")
}

func TestBuildSelect_DefaultOrderOnPaginationUsesPrimaryKey(t *testing.T) {
	limit := int64(5)
	q, err := sqlgen.BuildSelect(peopleTable(), sqlgen.SelectOptions{Limit: &limit})
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "ORDER BY [id]")
}

func TestBuildSelect_DefaultOrderWithoutPrimaryKeyUsesSelectNull(t *testing.T) {
	limit := int64(5)
	noKeyTable := &catalog.TableInfo{Schema: "dbo", Name: "log", Columns: []catalog.ColumnInfo{{Name: "msg"}}}
	q, err := sqlgen.BuildSelect(noKeyTable, sqlgen.SelectOptions{Limit: &limit})
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "ORDER BY (SELECT NULL)")
}

func TestBuildUpsert_MissingKeyOrPK(t *testing.T) {
	noKeyTable := &catalog.TableInfo{Schema: "dbo", Name: "log", Columns: []catalog.ColumnInfo{{Name: "msg"}}}
	_, err := sqlgen.BuildUpsert(noKeyTable, []string{"msg"}, [][]string{{"hi"}})
	require.Error(t, err)
	assert.IsType(t, &sqlgen.BadRequestError{}, err)
}

func TestBuildUpsert_Merge(t *testing.T) {
	q, err := sqlgen.BuildUpsert(peopleTable(), []string{"id", "name"}, [][]string{{"1", "bob"}})
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "MERGE [dbo].[people] AS target")
	assert.Contains(t, q.SQL, "ON target.[id] = source.[id]")
	assert.Contains(t, q.SQL, "WHEN MATCHED THEN UPDATE SET target.[name] = source.[name]")
	assert.Contains(t, q.SQL, "WHEN NOT MATCHED THEN INSERT ([id],[name]) VALUES (source.[id],source.[name])")
}

func TestBuildCall_WithArgs(t *testing.T) {
	q, err := sqlgen.BuildCall("recalc_totals", []string{"order_id"}, []string{"7"})
	require.NoError(t, err)
	assert.Equal(t, "EXEC [recalc_totals] @order_id = @P1", q.SQL)
	assert.Equal(t, []string{"7"}, q.Params)
}

func TestBuildCall_NoArgs(t *testing.T) {
	q, err := sqlgen.BuildCall("ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "EXEC [ping]", q.SQL)
}
