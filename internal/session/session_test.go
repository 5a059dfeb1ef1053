// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/session"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
)

func TestPrologue_Anonymous(t *testing.T) {
	stmts := session.Prologue("", nil, nil)
	require.Len(t, stmts, 1)
	assert.Equal(t, "SET NOCOUNT ON;", stmts[0])
}

func TestPrologue_WithRoleAndClaims(t *testing.T) {
	claims := &tokenauth.Claims{Raw: map[string]any{"tenant": "acme"}}
	claims.Subject = "user-123"
	stmts := session.Prologue("web_user", claims, []string{"tenant"})

	require.Len(t, stmts, 5)
	assert.Equal(t, "SET NOCOUNT ON;", stmts[0])
	assert.Equal(t, "EXECUTE AS USER = 'web_user';", stmts[1])
	assert.Contains(t, stmts[2], "request.jwt.claim.sub")
	assert.Contains(t, stmts[2], "user-123")
	assert.Contains(t, stmts[3], "request.jwt.claim.role")
	assert.Contains(t, stmts[3], "web_user")
	assert.Contains(t, stmts[4], "request.jwt.claim.tenant")
	assert.Contains(t, stmts[4], "acme")
}

func TestPrologue_EscapesQuotes(t *testing.T) {
	stmts := session.Prologue("o'brien", nil, nil)
	assert.Contains(t, stmts[1], "o''brien")
}

func TestWrapDML_Commit(t *testing.T) {
	out := session.WrapDML("DELETE FROM [dbo].[t];", session.TxCommit)
	assert.Contains(t, out, "BEGIN TRANSACTION;")
	assert.Contains(t, out, "COMMIT TRANSACTION;")
}

func TestWrapDML_Rollback(t *testing.T) {
	out := session.WrapDML("DELETE FROM [dbo].[t];", session.TxRollback)
	assert.Contains(t, out, "ROLLBACK TRANSACTION;")
}

func TestBatch_JoinsPrologueAndStatement(t *testing.T) {
	out := session.Batch([]string{"SET NOCOUNT ON;"}, "SELECT 1;")
	assert.Equal(t, "SET NOCOUNT ON;\nSELECT 1;", out)
}
