// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sqlrow scans [*sql.Rows] into order-preserving JSON objects.

database/sql already decodes driver values into native Go types (time.Time,
[]byte, string, int64, float64, bool, nil) the way go-mssqldb's TDS decoder
produces them, and encoding/json already renders those natively in the
shapes a REST client expects — an RFC 3339 string for time.Time, a base64
string for []byte. There is no hand-rolled value-conversion table here; the
standard library already does the one the dialect needs.
*/
package sqlrow

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Row is one result row, keeping the driver's column order for JSON/CSV
// serialization — map[string]any would re-sort keys alphabetically through
// encoding/json, which is a needless cosmetic divergence from the column
// order the catalog (and the client) expects.
type Row struct {
	cols []string
	vals map[string]any
}

// Columns returns the row's column names in driver order.
func (r Row) Columns() []string { return r.cols }

// Get returns the column's value and whether the column exists.
func (r Row) Get(col string) (any, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// StringValue renders col's value the way a join key is compared: nil is
// "not joinable" (ok=false), a string passes through unchanged, anything
// else is formatted with "%v".
func (r Row) StringValue(col string) (string, bool) {
	v, ok := r.vals[col]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

// Set overwrites or inserts col, appending it to the column order if new.
// Used by the embed engine to attach a related object/array under the
// embed's alias.
func (r *Row) Set(col string, value any) {
	if r.vals == nil {
		r.vals = make(map[string]any, 1)
	}
	if _, exists := r.vals[col]; !exists {
		r.cols = append(r.cols, col)
	}
	r.vals[col] = value
}

// Delete removes col from the row, if present.
func (r *Row) Delete(col string) {
	if _, ok := r.vals[col]; !ok {
		return
	}
	delete(r.vals, col)
	for i, c := range r.cols {
		if c == col {
			r.cols = append(r.cols[:i], r.cols[i+1:]...)
			break
		}
	}
}

// MarshalJSON renders the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, col := range r.cols {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, err := json.Marshal(r.vals[col])
		if err != nil {
			return nil, fmt.Errorf("sqlrow: marshal column %q: %w", col, err)
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// nonUnicodeCharTypes are the DATABASE_TYPE_NAME values go-mssqldb returns
// column data for as []byte rather than string; everything else that comes
// back as []byte (binary, varbinary, image, timestamp/rowversion) is left
// alone so encoding/json base64-encodes it, matching the dialect's own
// binary-to-base64 rendering.
var nonUnicodeCharTypes = map[string]bool{
	"CHAR": true, "VARCHAR": true, "TEXT": true,
}

// Scan reads every remaining row of rows into order-preserving [Row]
// values, closing rows before returning.
func Scan(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	isCharCol := make([]bool, len(cols))
	for i, t := range types {
		isCharCol[i] = nonUnicodeCharTypes[t.DatabaseTypeName()]
	}

	var out []Row
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		vals := make(map[string]any, len(cols))
		for i, c := range cols {
			v := dest[i]
			if b, ok := v.([]byte); ok && isCharCol[i] {
				v = string(b)
			}
			vals[c] = v
		}
		out = append(out, Row{cols: append([]string(nil), cols...), vals: vals})
	}
	return out, rows.Err()
}
