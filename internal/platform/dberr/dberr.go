// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr classifies raw SQL Server driver errors into [apperr.AppError]
// values, by matching substrings of the driver's message against the source
// examples in the error handling design. SQL Server reports most of these
// conditions through the text of the error rather than a small fixed set of
// exported error values, so substring matching on the message is the
// pragmatic classification strategy here, same as the original's own error
// mapping.
package dberr

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/taibuivan/sqlrest/internal/platform/apperr"
)

// Wrap inspects a database error and classifies it into a meaningful
// [apperr.AppError]; an unrecognized message falls back to [apperr.SQL].
// action names the failed step at the call site; Wrap does not read it, so
// it never reaches the client.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("resource")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Pool(err)
	}

	msg := strings.ToUpper(err.Error())
	switch {
	case containsAny(msg, "INVALID OBJECT NAME", "DOES NOT EXIST"):
		return apperr.NotFound("object")
	case containsAny(msg, "SYNTAX ERROR", "CONVERSION FAILED", "INCORRECT SYNTAX"):
		return apperr.BadRequest(err.Error())
	case containsAny(msg, "LOGIN FAILED"):
		return apperr.Unauthorized(err.Error())
	case containsAny(msg, "PERMISSION DENIED", "ACCESS DENIED", "THE SERVER PRINCIPAL", "EXECUTE AS"):
		return apperr.Forbidden(err.Error())
	case containsAny(msg, "VIOLATION OF UNIQUE", "VIOLATION OF PRIMARY KEY", "CONFLICTED WITH THE FOREIGN KEY",
		"CONFLICTED WITH THE REFERENCE", "DUPLICATE KEY"):
		return apperr.Conflict(err.Error())
	default:
		return apperr.SQL(err)
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
