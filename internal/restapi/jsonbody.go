// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package restapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// parseInsertBody reads a mutation body that may be a single JSON object
// or an array of objects (bulk insert), and flattens it into a fixed
// column list plus one literal-value row per object — [sqlgen.BuildInsert]
// and [sqlgen.BuildUpsert]'s input shape. A row missing one of the other
// rows' keys gets an empty-string literal for it, same as an explicit SQL
// NULL would via DEFAULT.
func parseInsertBody(body io.Reader) (columns []string, rows [][]string, err error) {
	objects, err := decodeBodyObjects(body)
	if err != nil {
		return nil, nil, err
	}
	return flattenObjects(objects)
}

// parseUpdateBody reads a mutation body that must be a single JSON object,
// returning its columns and literal values in matching order.
func parseUpdateBody(body io.Reader) (columns, values []string, err error) {
	objects, err := decodeBodyObjects(body)
	if err != nil {
		return nil, nil, err
	}
	if len(objects) != 1 {
		return nil, nil, fmt.Errorf("update body must be a single JSON object")
	}
	columns, rows, err := flattenObjects(objects)
	if err != nil {
		return nil, nil, err
	}
	return columns, rows[0], nil
}

// decodeBodyObjects accepts either a bare JSON object or a JSON array of
// objects and always returns a slice.
func decodeBodyObjects(body io.Reader) ([]map[string]any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}

	if trimmed[0] == '[' {
		var objects []map[string]any
		if err := json.Unmarshal(trimmed, &objects); err != nil {
			return nil, fmt.Errorf("invalid JSON array body: %w", err)
		}
		if len(objects) == 0 {
			return nil, fmt.Errorf("request body must contain at least one row")
		}
		return objects, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON object body: %w", err)
	}
	return []map[string]any{obj}, nil
}

// flattenObjects computes the union of every object's keys and projects
// each object onto that column list. The objects are Go maps, so the
// order of the columns is not defined.
func flattenObjects(objects []map[string]any) (columns []string, rows [][]string, err error) {
	colIndex := make(map[string]int)
	for _, obj := range objects {
		for k := range obj {
			if _, ok := colIndex[k]; !ok {
				colIndex[k] = len(columns)
				columns = append(columns, k)
			}
		}
	}

	rows = make([][]string, len(objects))
	for i, obj := range objects {
		row := make([]string, len(columns))
		for k, v := range obj {
			row[colIndex[k]] = jsonValueToSQLString(v)
		}
		rows[i] = row
	}
	return columns, rows, nil
}

// jsonValueToSQLString renders a decoded JSON value as the literal string
// sqlgen binds as a parameter: null becomes the empty string (NULL is
// supplied via DEFAULT/omission rather than a literal), booleans become
// "1"/"0" for SQL Server's bit type, numbers use their shortest round-trip
// decimal form, strings pass through unchanged, and arrays/objects are
// re-serialized as JSON text for a target column of a JSON-ish type.
func jsonValueToSQLString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	default:
		b, marshalErr := json.Marshal(val)
		if marshalErr != nil {
			return ""
		}
		return string(b)
	}
}
