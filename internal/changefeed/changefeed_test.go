// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package changefeed

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/catalog"
)

func TestSplitTable_Dotted(t *testing.T) {
	schema, name := splitTable("sales.orders", "dbo")
	assert.Equal(t, "sales", schema)
	assert.Equal(t, "orders", name)
}

func TestSplitTable_DefaultSchema(t *testing.T) {
	schema, name := splitTable("orders", "dbo")
	assert.Equal(t, "dbo", schema)
	assert.Equal(t, "orders", name)
}

func TestEventSet_DefaultsToAll(t *testing.T) {
	set := eventSet(nil)
	assert.True(t, set[OpInsert])
	assert.True(t, set[OpUpdate])
	assert.True(t, set[OpDelete])
}

func TestEventSet_Explicit(t *testing.T) {
	set := eventSet([]string{"insert", "DELETE"})
	assert.True(t, set[OpInsert])
	assert.False(t, set[OpUpdate])
	assert.True(t, set[OpDelete])
}

func TestChangeOpFromCode(t *testing.T) {
	op, ok := changeOpFromCode("I")
	require.True(t, ok)
	assert.Equal(t, OpInsert, op)

	op, ok = changeOpFromCode("D")
	require.True(t, ok)
	assert.Equal(t, OpDelete, op)

	_, ok = changeOpFromCode("X")
	assert.False(t, ok)
}

func TestParseFilterString_Empty(t *testing.T) {
	nodes, err := parseFilterString("")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestParseFilterString_MultipleTerms(t *testing.T) {
	nodes, err := parseFilterString("status=eq.paid&amount=gt.100")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
}

func TestParseFilterString_MissingOperator(t *testing.T) {
	_, err := parseFilterString("status")
	assert.Error(t, err)
}

func TestEngine_SubscribeUnknownTable(t *testing.T) {
	e := NewEngine(nil, catalog.NewStore(), Config{DefaultSchema: "dbo"})
	_, err := e.Subscribe(uuid.New(), "sub-1", "missing", "", nil, make(chan Message, 1))
	assert.Error(t, err)
}
