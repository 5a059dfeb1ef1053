// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package filterql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/filterql"
)

func fieldGetter(values map[string]string) filterql.FieldGetter {
	return func(col string) (string, bool) {
		v, ok := values[col]
		return v, ok
	}
}

func TestEval_Eq(t *testing.T) {
	cond, err := filterql.ParseCondition("status", "eq.paid")
	require.NoError(t, err)
	node := filterql.Cond{Condition: cond}

	assert.True(t, filterql.Eval(node, fieldGetter(map[string]string{"status": "paid"})))
	assert.False(t, filterql.Eval(node, fieldGetter(map[string]string{"status": "pending"})))
}

func TestEval_Negated(t *testing.T) {
	cond, err := filterql.ParseCondition("status", "not.eq.paid")
	require.NoError(t, err)
	node := filterql.Cond{Condition: cond}

	assert.False(t, filterql.Eval(node, fieldGetter(map[string]string{"status": "paid"})))
	assert.True(t, filterql.Eval(node, fieldGetter(map[string]string{"status": "pending"})))
}

func TestEval_IsNull(t *testing.T) {
	cond, err := filterql.ParseCondition("deleted_at", "is.null")
	require.NoError(t, err)
	node := filterql.Cond{Condition: cond}

	assert.True(t, filterql.Eval(node, fieldGetter(map[string]string{})))
	assert.False(t, filterql.Eval(node, fieldGetter(map[string]string{"deleted_at": "2026-01-01"})))
}

func TestEval_Gt_NumericFallback(t *testing.T) {
	cond, err := filterql.ParseCondition("age", "gt.18")
	require.NoError(t, err)
	node := filterql.Cond{Condition: cond}

	assert.True(t, filterql.Eval(node, fieldGetter(map[string]string{"age": "30"})))
	assert.False(t, filterql.Eval(node, fieldGetter(map[string]string{"age": "10"})))
}

func TestEval_In(t *testing.T) {
	cond, err := filterql.ParseCondition("id", "in.(1,2,3)")
	require.NoError(t, err)
	node := filterql.Cond{Condition: cond}

	assert.True(t, filterql.Eval(node, fieldGetter(map[string]string{"id": "2"})))
	assert.False(t, filterql.Eval(node, fieldGetter(map[string]string{"id": "9"})))
}

func TestEval_Like(t *testing.T) {
	cond, err := filterql.ParseCondition("name", "like.*bob*")
	require.NoError(t, err)
	node := filterql.Cond{Condition: cond}

	assert.True(t, filterql.Eval(node, fieldGetter(map[string]string{"name": "bobby"})))
	assert.False(t, filterql.Eval(node, fieldGetter(map[string]string{"name": "ann"})))
}

func TestEval_And(t *testing.T) {
	c1, _ := filterql.ParseCondition("status", "eq.paid")
	c2, _ := filterql.ParseCondition("amount", "gt.100")
	node := filterql.And{Children: []filterql.Node{filterql.Cond{Condition: c1}, filterql.Cond{Condition: c2}}}

	assert.True(t, filterql.Eval(node, fieldGetter(map[string]string{"status": "paid", "amount": "150"})))
	assert.False(t, filterql.Eval(node, fieldGetter(map[string]string{"status": "paid", "amount": "50"})))
}

func TestEval_Or(t *testing.T) {
	c1, _ := filterql.ParseCondition("status", "eq.paid")
	c2, _ := filterql.ParseCondition("status", "eq.refunded")
	node := filterql.Or{Children: []filterql.Node{filterql.Cond{Condition: c1}, filterql.Cond{Condition: c2}}}

	assert.True(t, filterql.Eval(node, fieldGetter(map[string]string{"status": "refunded"})))
	assert.False(t, filterql.Eval(node, fieldGetter(map[string]string{"status": "pending"})))
}
