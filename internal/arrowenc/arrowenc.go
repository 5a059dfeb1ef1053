// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package arrowenc encodes a result set as an Apache Arrow columnar record
batch, either as the binary IPC stream format or as Arrow's JSON
representation, for clients that negotiate
`application/vnd.apache.arrow.stream` or `application/vnd.apache.arrow+json`.

The schema is inferred per column from the first non-nil Go value
database/sql produced for it (int64, float64, bool, time.Time, else
string) — there is exactly one record batch per result set, matching the
row-oriented path's "one result set in, one response out" contract.
*/
package arrowenc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/taibuivan/sqlrest/internal/sqlrow"
)

// inferSchema builds an [arrow.Schema] from columns, typing each field by
// the first non-nil value found for it across rows; a column seen only as
// nil is typed as a nullable string.
func inferSchema(columns []string, rows []sqlrow.Row) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		fields[i] = arrow.Field{Name: col, Type: columnType(col, rows), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func columnType(col string, rows []sqlrow.Row) arrow.DataType {
	for _, row := range rows {
		v, ok := row.Get(col)
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case int64, int32, int16, int8, int:
			return arrow.PrimitiveTypes.Int64
		case float64, float32:
			return arrow.PrimitiveTypes.Float64
		case bool:
			return arrow.FixedWidthTypes.Boolean
		case time.Time:
			return arrow.FixedWidthTypes.Timestamp_ns
		default:
			return arrow.BinaryTypes.String
		}
	}
	return arrow.BinaryTypes.String
}

// buildRecord materializes one arrow.Record from rows against schema.
func buildRecord(schema *arrow.Schema, columns []string, rows []sqlrow.Row) arrow.Record {
	mem := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for i, col := range columns {
		fieldBuilder := builder.Field(i)
		switch fb := fieldBuilder.(type) {
		case *array.Int64Builder:
			for _, row := range rows {
				appendInt64(fb, row, col)
			}
		case *array.Float64Builder:
			for _, row := range rows {
				appendFloat64(fb, row, col)
			}
		case *array.BooleanBuilder:
			for _, row := range rows {
				v, ok := row.Get(col)
				if b, isBool := v.(bool); ok && isBool {
					fb.Append(b)
				} else {
					fb.AppendNull()
				}
			}
		case *array.TimestampBuilder:
			for _, row := range rows {
				v, ok := row.Get(col)
				if t, isTime := v.(time.Time); ok && isTime {
					fb.Append(arrow.Timestamp(t.UnixNano()))
				} else {
					fb.AppendNull()
				}
			}
		default:
			stringBuilder := fieldBuilder.(*array.StringBuilder)
			for _, row := range rows {
				appendString(stringBuilder, row, col)
			}
		}
	}

	return builder.NewRecord()
}

func appendInt64(fb *array.Int64Builder, row sqlrow.Row, col string) {
	v, ok := row.Get(col)
	if !ok || v == nil {
		fb.AppendNull()
		return
	}
	switch n := v.(type) {
	case int64:
		fb.Append(n)
	case int32:
		fb.Append(int64(n))
	case int16:
		fb.Append(int64(n))
	case int8:
		fb.Append(int64(n))
	case int:
		fb.Append(int64(n))
	default:
		fb.AppendNull()
	}
}

func appendFloat64(fb *array.Float64Builder, row sqlrow.Row, col string) {
	v, ok := row.Get(col)
	if !ok || v == nil {
		fb.AppendNull()
		return
	}
	switch n := v.(type) {
	case float64:
		fb.Append(n)
	case float32:
		fb.Append(float64(n))
	default:
		fb.AppendNull()
	}
}

func appendString(fb *array.StringBuilder, row sqlrow.Row, col string) {
	v, ok := row.Get(col)
	if !ok || v == nil {
		fb.AppendNull()
		return
	}
	if s, isStr := v.(string); isStr {
		fb.Append(s)
		return
	}
	fb.Append(fmt.Sprintf("%v", v))
}

// EncodeIPCStream renders rows as a single-batch Arrow IPC stream.
func EncodeIPCStream(columns []string, rows []sqlrow.Row) ([]byte, error) {
	schema := inferSchema(columns, rows)
	record := buildRecord(schema, columns, rows)
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := writer.Write(record); err != nil {
		return nil, fmt.Errorf("arrowenc: write record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("arrowenc: close writer: %w", err)
	}
	return buf.Bytes(), nil
}

// fieldJSON is one column's entry in EncodeArrowJSON's schema envelope.
type fieldJSON struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// schemaJSON describes a record's columns, arrow-go's own encoder has no
// equivalent to [ipc.NewWriter] for JSON, so the schema has to be
// rendered by hand to sit alongside the row data.
func schemaJSON(schema *arrow.Schema) []fieldJSON {
	fields := make([]fieldJSON, schema.NumFields())
	for i := 0; i < schema.NumFields(); i++ {
		f := schema.Field(i)
		fields[i] = fieldJSON{Name: f.Name, Type: f.Type.Name(), Nullable: f.Nullable}
	}
	return fields
}

// EncodeArrowJSON renders rows as a JSON document carrying the inferred
// schema alongside the row data. arrow-go's `array.RecordToJSON` only
// emits the flat per-row array, not a schema-bearing document, so that
// array is nested under "batches" next to a hand-built "schema" field.
func EncodeArrowJSON(columns []string, rows []sqlrow.Row) ([]byte, error) {
	schema := inferSchema(columns, rows)
	record := buildRecord(schema, columns, rows)
	defer record.Release()

	var rowsBuf bytes.Buffer
	if err := array.RecordToJSON(record, &rowsBuf); err != nil {
		return nil, fmt.Errorf("arrowenc: encode json rows: %w", err)
	}

	doc := struct {
		Schema  struct {
			Fields []fieldJSON `json:"fields"`
		} `json:"schema"`
		Batches []json.RawMessage `json:"batches"`
	}{
		Batches: []json.RawMessage{rowsBuf.Bytes()},
	}
	doc.Schema.Fields = schemaJSON(schema)

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("arrowenc: marshal json document: %w", err)
	}
	return out, nil
}
