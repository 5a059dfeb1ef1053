// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sqlrow_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/sqlrow"
)

func TestRow_MarshalJSON_PreservesColumnOrder(t *testing.T) {
	row := sqlrow.Row{}
	row.Set("z_col", "last")
	row.Set("a_col", "first")
	row.Set("m_col", nil)

	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"z_col":"last","a_col":"first","m_col":null}`, string(out))
}

func TestRow_StringValue(t *testing.T) {
	row := sqlrow.Row{}
	row.Set("id", int64(42))
	row.Set("name", "alice")
	row.Set("deleted_at", nil)

	v, ok := row.StringValue("id")
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	v, ok = row.StringValue("name")
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	_, ok = row.StringValue("deleted_at")
	assert.False(t, ok)

	_, ok = row.StringValue("missing")
	assert.False(t, ok)
}

func TestRow_Columns(t *testing.T) {
	row := sqlrow.Row{}
	row.Set("b", 1)
	row.Set("a", 2)
	assert.Equal(t, []string{"b", "a"}, row.Columns())
}
