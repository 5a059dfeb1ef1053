// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package filterql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/filterql"
)

func TestParseCondition_Basic(t *testing.T) {
	cond, err := filterql.ParseCondition("age", "gt.18")
	require.NoError(t, err)
	assert.Equal(t, filterql.OpGt, cond.Op)
	assert.Equal(t, "18", cond.Value)
	assert.False(t, cond.Negated)
}

func TestParseCondition_Negated(t *testing.T) {
	cond, err := filterql.ParseCondition("age", "not.eq.18")
	require.NoError(t, err)
	assert.True(t, cond.Negated)
	assert.Equal(t, filterql.OpEq, cond.Op)
}

func TestParseCondition_LikeStarRewrite(t *testing.T) {
	cond, err := filterql.ParseCondition("name", "like.*a*")
	require.NoError(t, err)
	assert.Equal(t, "%a%", cond.Value)
}

func TestParseCondition_In(t *testing.T) {
	cond, err := filterql.ParseCondition("id", "in.(1,2,3)")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, cond.List)
}

func TestParseCondition_InEmptyDropsBlankItems(t *testing.T) {
	cond, err := filterql.ParseCondition("id", "in.(1,,3)")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, cond.List)
}

func TestParseCondition_InEmptyList(t *testing.T) {
	cond, err := filterql.ParseCondition("id", "in.()")
	require.NoError(t, err)
	assert.Empty(t, cond.List)
}

func TestParseCondition_Is(t *testing.T) {
	cond, err := filterql.ParseCondition("age", "is.NULL")
	require.NoError(t, err)
	assert.Equal(t, filterql.IsNull, cond.Is)

	cond, err = filterql.ParseCondition("active", "is.true")
	require.NoError(t, err)
	assert.Equal(t, filterql.IsTrue, cond.Is)

	_, err = filterql.ParseCondition("active", "is.maybe")
	require.Error(t, err)
}

func TestParseCondition_UnknownOp(t *testing.T) {
	_, err := filterql.ParseCondition("age", "bogus.1")
	require.Error(t, err)
}

func TestParseLogicGroup_Or(t *testing.T) {
	nodes, err := filterql.ParseLogicGroup("age.gt.18,name.like.*a*")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	c0 := nodes[0].(filterql.Cond)
	assert.Equal(t, "age", c0.Condition.Column)
}

func TestParseLogicGroup_Nested(t *testing.T) {
	nodes, err := filterql.ParseLogicGroup("age.gt.18,and(name.eq.bob,active.is.true)")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	and, ok := nodes[1].(filterql.And)
	require.True(t, ok)
	assert.Len(t, and.Children, 2)
}

func TestParseLogicGroup_UnmatchedParen(t *testing.T) {
	_, err := filterql.ParseLogicGroup("and(age.gt.18")
	require.Error(t, err)
}
