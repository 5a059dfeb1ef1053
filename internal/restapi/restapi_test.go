// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package restapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/catalog"
	"github.com/taibuivan/sqlrest/internal/sqlrow"
)

func TestSplitDotted(t *testing.T) {
	embed, tail, ok := splitDotted("orders.status")
	require.True(t, ok)
	assert.Equal(t, "orders", embed)
	assert.Equal(t, "status", tail)

	_, _, ok = splitDotted("status")
	assert.False(t, ok)
}

func TestJSONValueToSQLString(t *testing.T) {
	assert.Equal(t, "", jsonValueToSQLString(nil))
	assert.Equal(t, "1", jsonValueToSQLString(true))
	assert.Equal(t, "0", jsonValueToSQLString(false))
	assert.Equal(t, "42", jsonValueToSQLString(float64(42)))
	assert.Equal(t, "bob", jsonValueToSQLString("bob"))
	assert.Equal(t, `["a","b"]`, jsonValueToSQLString([]any{"a", "b"}))
}

func TestFlattenObjects_UnionOfColumns(t *testing.T) {
	columns, rows, err := flattenObjects([]map[string]any{
		{"name": "bob", "age": float64(30)},
		{"name": "ann"},
	})
	require.NoError(t, err)
	require.Len(t, columns, 2)

	nameIdx, ageIdx := -1, -1
	for i, c := range columns {
		switch c {
		case "name":
			nameIdx = i
		case "age":
			ageIdx = i
		}
	}
	require.NotEqual(t, -1, nameIdx)
	require.NotEqual(t, -1, ageIdx)

	assert.Equal(t, "bob", rows[0][nameIdx])
	assert.Equal(t, "30", rows[0][ageIdx])
	assert.Equal(t, "ann", rows[1][nameIdx])
	assert.Equal(t, "", rows[1][ageIdx])
}

func TestDecodeBodyObjects_ObjectAndArray(t *testing.T) {
	objs, err := decodeBodyObjects(strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	require.Len(t, objs, 1)

	objs, err = decodeBodyObjects(strings.NewReader(`[{"a":1},{"a":2}]`))
	require.NoError(t, err)
	require.Len(t, objs, 2)

	_, err = decodeBodyObjects(strings.NewReader(``))
	assert.Error(t, err)
}

func TestAttach_ManyToOne(t *testing.T) {
	var parent sqlrow.Row
	parent.Set("id", "1")
	parent.Set("customer_id", "7")
	parents := []sqlrow.Row{parent}

	var related sqlrow.Row
	related.Set("id", "7")
	related.Set("name", "acme")
	grouped := groupByColumn([]sqlrow.Row{related}, "id")

	attach(parents, "customers", "customer_id", catalog.ManyToOne, grouped)

	v, ok := parents[0].Get("customers")
	require.True(t, ok)
	row, ok := v.(sqlrow.Row)
	require.True(t, ok)
	name, _ := row.StringValue("name")
	assert.Equal(t, "acme", name)
}

func TestAttach_OneToManyNoMatch(t *testing.T) {
	var parent sqlrow.Row
	parent.Set("id", "1")
	parents := []sqlrow.Row{parent}

	attach(parents, "orders", "id", catalog.OneToMany, map[string][]sqlrow.Row{})

	v, ok := parents[0].Get("orders")
	require.True(t, ok)
	rows, ok := v.([]sqlrow.Row)
	require.True(t, ok)
	assert.Empty(t, rows)
}

func TestAttachEmpty_ManyToOneIsNull(t *testing.T) {
	var parent sqlrow.Row
	parent.Set("id", "1")
	parents := []sqlrow.Row{parent}

	attachEmpty(parents, "customers", catalog.ManyToOne)

	v, ok := parents[0].Get("customers")
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestAttachEmpty_OneToManyIsEmptyArray(t *testing.T) {
	var parent sqlrow.Row
	parent.Set("id", "1")
	parents := []sqlrow.Row{parent}

	attachEmpty(parents, "orders", catalog.OneToMany)

	v, ok := parents[0].Get("orders")
	require.True(t, ok)
	rows, ok := v.([]sqlrow.Row)
	require.True(t, ok)
	assert.Empty(t, rows)
}

func TestDistinctJoinValues_SkipsNullsAndDupes(t *testing.T) {
	var r1, r2, r3 sqlrow.Row
	r1.Set("customer_id", "1")
	r2.Set("customer_id", "1")
	r3.Set("customer_id", nil)

	values := distinctJoinValues([]sqlrow.Row{r1, r2, r3}, "customer_id")
	assert.Equal(t, []string{"1"}, values)
}

func TestHiddenJoinColumns(t *testing.T) {
	hidden := hiddenJoinColumns([]string{"id", "name"}, false, []string{"customer_id"})
	assert.Equal(t, []string{"customer_id"}, hidden)

	hidden = hiddenJoinColumns([]string{"id", "customer_id"}, false, []string{"customer_id"})
	assert.Empty(t, hidden)

	hidden = hiddenJoinColumns(nil, true, []string{"customer_id"})
	assert.Empty(t, hidden)
}
