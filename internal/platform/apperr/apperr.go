// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for the API.

It provides a rich error type that bridges the gap between low-level SQL
Server/driver errors and the PostgREST-style error envelope the HTTP layer
must return.

Architecture:

  - AppError: a struct carrying an HTTP status, a stable PGRST-style code,
    a client-safe message, and optional details/hint strings.
  - Mapping: explicit mapping from each error Kind to its HTTP status and
    code, per the error handling design.

Every error that leaves the request handler should be wrapped as an
[AppError] to ensure a consistent API response.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by the category of failure that produced it.
type Kind int

const (
	KindNotFound Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindConflict
	KindSingleObjectExpected
	KindSQL
	KindPool
	KindInternal
)

// kindInfo holds the fixed HTTP status and PGRST code for a [Kind].
type kindInfo struct {
	status int
	code   string
}

var kindTable = map[Kind]kindInfo{
	KindNotFound:             {http.StatusNotFound, "PGRST116"},
	KindBadRequest:           {http.StatusBadRequest, "PGRST100"},
	KindUnauthorized:         {http.StatusUnauthorized, "PGRST301"},
	KindForbidden:            {http.StatusForbidden, "PGRST302"},
	KindConflict:             {http.StatusConflict, "PGRST209"},
	KindSingleObjectExpected: {http.StatusNotAcceptable, "PGRST116"},
	KindSQL:                  {http.StatusInternalServerError, "PGRST200"},
	KindPool:                 {http.StatusServiceUnavailable, "PGRST503"},
	KindInternal:             {http.StatusInternalServerError, "PGRST500"},
}

// AppError is the canonical error type for the API.
//
// # Security
//
// Cause is for server-side logging only and is never sent to clients, to
// avoid leaking internal implementation details (e.g. raw SQL).
type AppError struct {
	Kind Kind

	// Code is the stable, namespaced PGRST-style token returned to clients.
	Code string `json:"code"`
	// Message is safe to return to the client.
	Message string `json:"message"`
	// Details carries a raw driver message or other diagnostic, or empty.
	Details string `json:"details,omitempty"`
	// Hint is an optional client-facing suggestion; usually unset.
	Hint string `json:"hint,omitempty"`

	HTTPStatus int   `json:"-"`
	Cause      error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is]/[errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

func newErr(kind Kind, message string) *AppError {
	info := kindTable[kind]
	return &AppError{Kind: kind, Code: info.code, Message: message, HTTPStatus: info.status}
}

// NotFound creates a 404 PGRST116 error for a named resource.
func NotFound(resource string) *AppError {
	return newErr(KindNotFound, resource+" not found")
}

// BadRequest creates a 400 PGRST100 error. msg should quote the offending
// fragment of the request, per the error-detail policy.
func BadRequest(msg string) *AppError {
	return newErr(KindBadRequest, msg)
}

// Unauthorized creates a 401 PGRST301 error.
func Unauthorized(msg string) *AppError {
	return newErr(KindUnauthorized, msg)
}

// Forbidden creates a 403 PGRST302 error.
func Forbidden(msg string) *AppError {
	return newErr(KindForbidden, msg)
}

// Conflict creates a 409 PGRST209 error, typically a unique/PK/FK violation.
func Conflict(msg string) *AppError {
	return newErr(KindConflict, msg)
}

// SingleObjectExpected creates a 406 PGRST116 error for a single-object
// request (Accept: application/vnd.pgrst.object+json) whose result set did
// not contain exactly one row.
func SingleObjectExpected(rowCount int) *AppError {
	return newErr(KindSingleObjectExpected, fmt.Sprintf("expected exactly one row, got %d", rowCount))
}

// SQL wraps a driver error not otherwise classified by [dberr]. The raw
// driver message is placed in Details, never in Message.
func SQL(cause error) *AppError {
	e := newErr(KindSQL, "a database error occurred")
	e.Cause = cause
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// Pool creates a 503 PGRST503 error for acquisition or token-fetch failure.
func Pool(cause error) *AppError {
	e := newErr(KindPool, "the connection pool is unavailable")
	e.Cause = cause
	return e
}

// Internal creates a 500 PGRST500 error wrapping an unexpected invariant
// violation. The cause is stored for logging but never sent to the client.
func Internal(cause error) *AppError {
	e := newErr(KindInternal, "an unexpected error occurred")
	e.Cause = cause
	return e
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain, or nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
