// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Request Grammar: reserved query-string keys and well-known headers.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "sqlrest"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// GlobalRequestTimeout bounds every request's total handling time,
	// including the SQL round-trip.
	GlobalRequestTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID     = "X-Request-ID"
	HeaderXRealIP        = "X-Real-IP"
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderOrigin         = "Origin"
	HeaderAuthorization  = "Authorization"
	HeaderAccept         = "Accept"
	HeaderPrefer         = "Prefer"
	HeaderRange          = "Range"
	HeaderContentRange   = "Content-Range"
	HeaderContentType    = "Content-Type"
	HeaderContentLocation = "Content-Location"
)

// # Request Grammar

const (
	// DefaultSchema is assumed when a table path has a single segment.
	DefaultSchema = "dbo"

	// QueryKeySelect is the column-and-embed projection grammar key.
	QueryKeySelect = "select"
	// QueryKeyOrder is the sort-term list key.
	QueryKeyOrder = "order"
	// QueryKeyLimit caps the number of rows returned.
	QueryKeyLimit = "limit"
	// QueryKeyOffset skips leading rows in the result set.
	QueryKeyOffset = "offset"
	// QueryKeyAnd groups filters with AND.
	QueryKeyAnd = "and"
	// QueryKeyOr groups filters with OR.
	QueryKeyOr = "or"
)

// ReservedQueryKeys are never treated as a column filter, regardless of
// whether a column by that name exists.
var ReservedQueryKeys = map[string]bool{
	QueryKeySelect: true,
	QueryKeyOrder:  true,
	QueryKeyLimit:  true,
	QueryKeyOffset: true,
	QueryKeyAnd:    true,
	QueryKeyOr:     true,
}

// # JSON Field Identifiers

const (
	FieldCode    = "code"
	FieldMessage = "message"
	FieldDetails = "details"
	FieldHint    = "hint"

	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)
