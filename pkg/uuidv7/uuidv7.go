// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package uuidv7 wraps google/uuid to generate time-ordered UUIDv7 values.
//
// # Why UUIDv7?
//
// It is time-sortable, which keeps a change-feed subscription's identifier
// roughly ordered by connection time — useful when an operator is scanning
// logs for a session, even though nothing here is a clustered-index key
// the way a stored row's primary key would be.
package uuidv7

import "github.com/google/uuid"

// New generates a new UUIDv7 string.
//
// # Safety
//
// It panics only if the OS random source is unavailable (extremely rare).
// This is acceptable as OS entropy failure is an unrecoverable system-level error.
func New() string {
	return NewUUID().String()
}

// NewUUID generates a new UUIDv7 [uuid.UUID], for callers that key maps or
// structs on the typed value rather than its string form.
func NewUUID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic("uuidv7: failed to generate UUID: " + err.Error())
	}
	return id
}

// Must generates a new UUIDv7 or panics.
//
// This is an alias for [New] kept for readability and consistency with
// Go's "Must" pattern in call sites.
func Must() string {
	return New()
}
