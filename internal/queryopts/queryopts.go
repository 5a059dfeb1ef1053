// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package queryopts parses the request-wide options that aren't part of the
filter/select grammars: `order`, `Range`, `Prefer`, and `Accept`.
*/
package queryopts

import (
	"strconv"
	"strings"
)

// Direction is the sort direction of an OrderTerm.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Nulls positions NULLs first or last in the sort order; Unspecified leaves
// dialect default behavior.
type Nulls string

const (
	NullsUnspecified Nulls = ""
	NullsFirst       Nulls = "nullsfirst"
	NullsLast        Nulls = "nullslast"
)

// OrderTerm is one `column[.dir[.nulls]]` segment of the `order` parameter.
type OrderTerm struct {
	Column    string
	Direction Direction
	Nulls     Nulls
}

// ParseOrder parses the comma-separated `order` query parameter.
func ParseOrder(s string) ([]OrderTerm, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	segments := strings.Split(s, ",")
	terms := make([]OrderTerm, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		parts := strings.Split(seg, ".")
		term := OrderTerm{Column: parts[0], Direction: Asc}
		for _, p := range parts[1:] {
			switch strings.ToLower(p) {
			case "asc":
				term.Direction = Asc
			case "desc":
				term.Direction = Desc
			case "nullsfirst":
				term.Nulls = NullsFirst
			case "nullslast":
				term.Nulls = NullsLast
			}
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// ParseRange parses the `Range: a-b` header as an `offset=a, limit=b-a+1`
// fallback for the `limit`/`offset` query parameters. Returns ok=false if
// the header is absent or malformed.
func ParseRange(header string) (limit, offset int64, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(header, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, errA := strconv.ParseInt(parts[0], 10, 64)
	b, errB := strconv.ParseInt(parts[1], 10, 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return b - a + 1, a, true
}

// ReturnMode is the `Prefer: return=...` directive.
type ReturnMode string

const (
	ReturnRepresentation ReturnMode = "representation"
	ReturnHeadersOnly    ReturnMode = "headers-only"
	ReturnMinimal        ReturnMode = "minimal"
)

// TxPreference is the `Prefer: tx=...` directive.
type TxPreference string

const (
	TxCommit   TxPreference = "commit"
	TxRollback TxPreference = "rollback"
)

// Preferences is the parsed `Prefer` header.
type Preferences struct {
	Return     ReturnMode
	Count      bool
	Resolution string // "merge-duplicates" or ""
	Tx         TxPreference
}

// ParsePrefer parses the comma-separated `Prefer` header.
func ParsePrefer(header string) Preferences {
	p := Preferences{Return: ReturnRepresentation, Tx: TxCommit}
	for _, part := range strings.Split(header, ",") {
		switch strings.TrimSpace(part) {
		case "return=representation":
			p.Return = ReturnRepresentation
		case "return=headers-only":
			p.Return = ReturnHeadersOnly
		case "return=minimal":
			p.Return = ReturnMinimal
		case "count=exact":
			p.Count = true
		case "resolution=merge-duplicates":
			p.Resolution = "merge-duplicates"
		case "tx=rollback":
			p.Tx = TxRollback
		case "tx=commit":
			p.Tx = TxCommit
		}
	}
	return p
}

// Format is the negotiated response representation.
type Format string

const (
	FormatJSON             Format = "json"
	FormatSingleObjectJSON Format = "single-object-json"
	FormatCSV              Format = "csv"
	FormatArrowIPCStream   Format = "arrow-ipc-stream"
	FormatArrowJSON        Format = "arrow-json"
)

// ParseAccept matches the `Accept` header by substring, in priority order:
// single-object JSON, CSV, Arrow IPC stream, Arrow JSON, else plain JSON.
func ParseAccept(header string) Format {
	switch {
	case strings.Contains(header, "application/vnd.pgrst.object+json"):
		return FormatSingleObjectJSON
	case strings.Contains(header, "text/csv"):
		return FormatCSV
	case strings.Contains(header, "application/vnd.apache.arrow.stream"):
		return FormatArrowIPCStream
	case strings.Contains(header, "application/vnd.apache.arrow+json"):
		return FormatArrowJSON
	default:
		return FormatJSON
	}
}
