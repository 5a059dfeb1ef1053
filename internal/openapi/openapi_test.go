// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/catalog"
)

func TestSwaggerUIHTML_EmbedsSpecURL(t *testing.T) {
	html := SwaggerUIHTML("sqlrest API", "http://localhost:8080/")
	assert.Contains(t, html, "http://localhost:8080/")
	assert.Contains(t, html, "sqlrest API")
}

func TestTablePath_DefaultVsOtherSchema(t *testing.T) {
	assert.Equal(t, "/orders", tablePath(&catalog.TableInfo{Schema: "dbo", Name: "orders"}, "dbo"))
	assert.Equal(t, "/reporting/summary", tablePath(&catalog.TableInfo{Schema: "reporting", Name: "summary"}, "dbo"))
}

func TestTableOperations_ViewHasNoMutations(t *testing.T) {
	view := &catalog.TableInfo{
		Schema:  "reporting",
		Name:    "summary",
		IsView:  true,
		Columns: []catalog.ColumnInfo{{Name: "count", DataType: "bigint"}},
	}

	pathItem, schema := tableOperations(view)
	assert.Contains(t, pathItem, "get")
	assert.NotContains(t, pathItem, "post")
	assert.NotContains(t, pathItem, "patch")
	assert.NotContains(t, pathItem, "delete")

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "count")
}

func TestTableOperations_TableHasFullCRUDAndRequiredColumns(t *testing.T) {
	table := &catalog.TableInfo{
		Schema: "dbo",
		Name:   "orders",
		Columns: []catalog.ColumnInfo{
			{Name: "id", DataType: "int", IsIdentity: true},
			{Name: "total", DataType: "decimal", Nullable: false},
			{Name: "note", DataType: "nvarchar", Nullable: true},
		},
	}

	pathItem, schema := tableOperations(table)
	assert.Contains(t, pathItem, "get")
	assert.Contains(t, pathItem, "post")
	assert.Contains(t, pathItem, "patch")
	assert.Contains(t, pathItem, "delete")

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"total"}, required, "identity and nullable columns must not be required")
}

func TestSQLTypeToOpenAPI(t *testing.T) {
	typeName, format := sqlTypeToOpenAPI("BIGINT")
	assert.Equal(t, "integer", typeName)
	assert.Equal(t, "int64", format)

	typeName, format = sqlTypeToOpenAPI("uniqueidentifier")
	assert.Equal(t, "string", typeName)
	assert.Equal(t, "uuid", format)

	typeName, format = sqlTypeToOpenAPI("geography")
	assert.Equal(t, "string", typeName)
	assert.Equal(t, "", format)
}
