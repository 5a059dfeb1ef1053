// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package restapi

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"time"

	"github.com/taibuivan/sqlrest/internal/platform/ctxutil"
	"github.com/taibuivan/sqlrest/internal/platform/dberr"
	"github.com/taibuivan/sqlrest/internal/session"
	"github.com/taibuivan/sqlrest/internal/sqlrow"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
)

// runStatement acquires a connection, prepends the session prologue (role
// impersonation plus published JWT claims) ahead of stmt, executes the
// whole thing as one batch on that connection, and scans whatever single
// result set comes back. The single-statement requests — the
// transaction-wrapped DML OUTPUT statements and RPC calls — go through
// here; the SELECT path, with its COUNT and embed batch lookups, holds one
// connection for the whole request and uses [runStatementOnConn] instead.
func (h *Handler) runStatement(ctx context.Context, role string, claims *tokenauth.Claims, stmt string, params []string) ([]sqlrow.Row, error) {
	guard, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, dberr.Wrap(err, "acquire")
	}
	defer guard.Release()

	prologue := session.Prologue(role, claims, h.contextClaims)
	batch := session.Batch(prologue, stmt)

	args := namedArgs(params)

	start := time.Now()
	rows, err := guard.Conn().QueryContext(ctx, batch, args...)
	elapsed := time.Since(start)
	h.logSlowQuery(ctx, elapsed, stmt)

	if err != nil {
		return nil, dberr.Wrap(err, "query")
	}
	scanned, err := sqlrow.Scan(rows)
	if err != nil {
		return nil, dberr.Wrap(err, "scan")
	}
	return scanned, nil
}

// runStatementOnConn is [runStatement] for a connection the caller already
// holds — used by the embed engine, which issues several sequential batch
// lookups on the same connection as the parent query per the
// same-connection ordering guarantee.
func (h *Handler) runStatementOnConn(ctx context.Context, conn *sql.Conn, role string, claims *tokenauth.Claims, stmt string, params []string) ([]sqlrow.Row, error) {
	prologue := session.Prologue(role, claims, h.contextClaims)
	batch := session.Batch(prologue, stmt)

	args := namedArgs(params)

	start := time.Now()
	rows, err := conn.QueryContext(ctx, batch, args...)
	elapsed := time.Since(start)
	h.logSlowQuery(ctx, elapsed, stmt)

	if err != nil {
		return nil, dberr.Wrap(err, "query")
	}
	scanned, err := sqlrow.Scan(rows)
	if err != nil {
		return nil, dberr.Wrap(err, "scan")
	}
	return scanned, nil
}

func namedArgs(params []string) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = sql.Named("P"+strconv.Itoa(i+1), p)
	}
	return args
}

func (h *Handler) logSlowQuery(ctx context.Context, elapsed time.Duration, stmt string) {
	if h.slowQueryThreshold <= 0 || elapsed < h.slowQueryThreshold {
		return
	}
	ctxutil.GetLogger(ctx).WarnContext(ctx, "slow_query",
		slog.Duration("elapsed", elapsed),
		slog.String("sql", stmt),
	)
}
