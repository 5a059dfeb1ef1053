// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package queryopts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/queryopts"
)

func TestParseOrder(t *testing.T) {
	terms, err := queryopts.ParseOrder("age.desc.nullslast,name")
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, queryopts.Desc, terms[0].Direction)
	assert.Equal(t, queryopts.NullsLast, terms[0].Nulls)
	assert.Equal(t, queryopts.Asc, terms[1].Direction)
}

func TestParseRange(t *testing.T) {
	limit, offset, ok := queryopts.ParseRange("0-24")
	require.True(t, ok)
	assert.Equal(t, int64(25), limit)
	assert.Equal(t, int64(0), offset)
}

func TestParseRange_SingleRow(t *testing.T) {
	limit, offset, ok := queryopts.ParseRange("0-0")
	require.True(t, ok)
	assert.Equal(t, int64(1), limit)
	assert.Equal(t, int64(0), offset)
}

func TestParseRange_Malformed(t *testing.T) {
	_, _, ok := queryopts.ParseRange("bogus")
	assert.False(t, ok)
}

func TestParsePrefer(t *testing.T) {
	p := queryopts.ParsePrefer("return=minimal, count=exact, tx=rollback")
	assert.Equal(t, queryopts.ReturnMinimal, p.Return)
	assert.True(t, p.Count)
	assert.Equal(t, queryopts.TxRollback, p.Tx)
}

func TestParsePrefer_Defaults(t *testing.T) {
	p := queryopts.ParsePrefer("")
	assert.Equal(t, queryopts.ReturnRepresentation, p.Return)
	assert.Equal(t, queryopts.TxCommit, p.Tx)
	assert.False(t, p.Count)
}

func TestParseAccept(t *testing.T) {
	assert.Equal(t, queryopts.FormatSingleObjectJSON, queryopts.ParseAccept("application/vnd.pgrst.object+json"))
	assert.Equal(t, queryopts.FormatCSV, queryopts.ParseAccept("text/csv"))
	assert.Equal(t, queryopts.FormatArrowIPCStream, queryopts.ParseAccept("application/vnd.apache.arrow.stream"))
	assert.Equal(t, queryopts.FormatJSON, queryopts.ParseAccept(""))
}
