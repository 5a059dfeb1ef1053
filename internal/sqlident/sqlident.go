// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sqlident provides the two escaping primitives every other SQL-facing
package in this module is built on: bracket-identifier quoting and literal
single-quote escaping for T-SQL.

# Safety

[EscapeLiteral] must never be used for values supplied by request clients —
those always flow through named `@Pn` parameters. It exists only for values
the session builder inlines directly into the prologue (impersonated
principal, session-context keys), where parameter binding isn't available
because `EXECUTE AS USER` doesn't accept one.
*/
package sqlident

import "strings"

// EscapeIdent doubles every `]` in s so the result is safe to wrap in `[...]`.
func EscapeIdent(s string) string {
	return strings.ReplaceAll(s, "]", "]]")
}

// QuoteIdent brackets s after escaping it, e.g. `QuoteIdent("a]b")` -> `[a]]b]`.
func QuoteIdent(s string) string {
	return "[" + EscapeIdent(s) + "]"
}

// QuoteQualified brackets a schema-qualified name as `[schema].[name]`.
func QuoteQualified(schema, name string) string {
	return QuoteIdent(schema) + "." + QuoteIdent(name)
}

// EscapeLiteral doubles every `'` in s so the result is safe to wrap in `'...'`.
//
// Used only for values inlined into the session prologue — never for
// user-supplied filter values.
func EscapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
