// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/sqlrest/internal/platform/ctxutil"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
)

func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id"

	assert.Empty(t, ctxutil.GetRequestID(ctx))

	ctx = ctxutil.WithRequestID(ctx, requestID)
	assert.Equal(t, requestID, ctxutil.GetRequestID(ctx))
}

func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}

func TestContext_Claims(t *testing.T) {
	ctx := context.Background()
	claims := &tokenauth.Claims{Raw: map[string]any{"sub": "user-123"}}

	assert.Nil(t, ctxutil.GetClaims(ctx))

	ctx = ctxutil.WithClaims(ctx, claims)
	retrieved := ctxutil.GetClaims(ctx)

	assert.NotNil(t, retrieved)
	assert.Equal(t, "user-123", retrieved.Raw["sub"])
}

func TestContext_Role(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, ctxutil.GetRole(ctx))

	ctx = ctxutil.WithRole(ctx, "web_anon")
	assert.Equal(t, "web_anon", ctxutil.GetRole(ctx))
}
