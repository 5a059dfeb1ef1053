// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package arrowenc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/arrowenc"
	"github.com/taibuivan/sqlrest/internal/sqlrow"
)

func row(id int64, name string, active bool) sqlrow.Row {
	var r sqlrow.Row
	r.Set("id", id)
	r.Set("name", name)
	r.Set("active", active)
	return r
}

func TestEncodeIPCStream_ProducesNonEmptyStream(t *testing.T) {
	rows := []sqlrow.Row{row(1, "alice", true), row(2, "bob", false)}

	out, err := arrowenc.EncodeIPCStream([]string{"id", "name", "active"}, rows)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestEncodeIPCStream_EmptyRowsStillProducesValidStream(t *testing.T) {
	out, err := arrowenc.EncodeIPCStream([]string{"id", "name"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestEncodeArrowJSON_ProducesNonEmptyDocument(t *testing.T) {
	rows := []sqlrow.Row{row(1, "alice", true)}

	out, err := arrowenc.EncodeArrowJSON([]string{"id", "name", "active"}, rows)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Contains(t, string(out), "schema")
}

func TestEncodeArrowJSON_NilColumnFallsBackToStringType(t *testing.T) {
	var r sqlrow.Row
	r.Set("note", nil)

	out, err := arrowenc.EncodeArrowJSON([]string{"note"}, []sqlrow.Row{r})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Contains(t, string(out), `"type":"utf8"`)
}
