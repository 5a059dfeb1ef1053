// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session builds the prologue of SQL statements that establishes a
request's execution context on a shared connection: impersonation of the
resolved database principal, and session-context variables carrying
selected JWT claims for row-level security predicates to read.
*/
package session

import (
	"fmt"
	"strings"

	"github.com/taibuivan/sqlrest/internal/sqlident"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
)

// RevertSQL reverts an EXECUTE AS impersonation established by [Prologue],
// safe to run even if no impersonation is currently active.
const RevertSQL = "IF EXISTS (SELECT 1 FROM sys.login_token WHERE usage = 'DENY ONLY') REVERT;"

// Prologue builds the statement batch prepended to every request: disable
// row-count messages, impersonate the resolved principal (if any), and
// publish the configured claims as session context variables so that
// row-level-security predicates and server-side logic can read them via
// SESSION_CONTEXT().
//
// contextClaims lists, in order, which top-level claim names from claims
// get published; "sub" is always published when claims is non-nil, ahead
// of the configured list, matching the always-on subject/role publication
// of the reference contract.
func Prologue(role string, claims *tokenauth.Claims, contextClaims []string) []string {
	stmts := []string{"SET NOCOUNT ON;"}

	if role != "" {
		stmts = append(stmts, fmt.Sprintf("EXECUTE AS USER = '%s';", sqlident.EscapeLiteral(role)))
	}

	if claims != nil {
		if claims.Subject != "" {
			stmts = append(stmts, contextStmt("sub", claims.Subject))
		}
		if role != "" {
			stmts = append(stmts, contextStmt("role", role))
		}
		for _, name := range contextClaims {
			if name == "sub" || name == "role" {
				continue
			}
			val, ok := claims.Raw[name]
			if !ok {
				continue
			}
			stmts = append(stmts, contextStmt(name, claimToString(val)))
		}
	}

	return stmts
}

func contextStmt(key, value string) string {
	return fmt.Sprintf("EXEC sp_set_session_context N'request.jwt.claim.%s', N'%s';",
		sqlident.EscapeLiteral(key), sqlident.EscapeLiteral(value))
}

func claimToString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// TxKind selects how a DML batch is wrapped.
type TxKind int

const (
	TxCommit TxKind = iota
	TxRollback
)

// WrapDML wraps stmt in an explicit transaction, committing or rolling
// back according to kind.
func WrapDML(stmt string, kind TxKind) string {
	var b strings.Builder
	b.WriteString("BEGIN TRANSACTION;\n")
	b.WriteString(stmt)
	if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
		b.WriteString(";")
	}
	b.WriteString("\n")
	if kind == TxRollback {
		b.WriteString("ROLLBACK TRANSACTION;")
	} else {
		b.WriteString("COMMIT TRANSACTION;")
	}
	return b.String()
}

// Batch joins a prologue and a main statement into one statement batch,
// separated by newlines, the form the connection pool sends verbatim.
func Batch(prologue []string, stmt string) string {
	var b strings.Builder
	for _, s := range prologue {
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString(stmt)
	return b.String()
}
