// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/sqlrest/internal/platform/ctxkey"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}

// # Identity & Access

// WithClaims returns a new context with the verified bearer token claims
// attached. claims is nil for an anonymous request.
func WithClaims(ctx context.Context, claims *tokenauth.Claims) context.Context {
	return context.WithValue(ctx, ctxkey.KeyClaims, claims)
}

// GetClaims retrieves the verified claims from the context, or nil if the
// request was anonymous.
func GetClaims(ctx context.Context) *tokenauth.Claims {
	claims, _ := ctx.Value(ctxkey.KeyClaims).(*tokenauth.Claims)
	return claims
}

// WithRole returns a new context with the resolved database role attached.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRole, role)
}

// GetRole retrieves the resolved database role from the context.
func GetRole(ctx context.Context) string {
	role, _ := ctx.Value(ctxkey.KeyRole).(string)
	return role
}
