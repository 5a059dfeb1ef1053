// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package openapi builds an OpenAPI 3.0 document from the live catalog and
serves a static Swagger-UI shell that points back at it. Both are derived
entirely from the current [catalog.Catalog] snapshot — there is no
hand-written schema anywhere in this package, by construction, since the
whole point of the service is that its surface follows the connected
database.
*/
package openapi

import (
	"fmt"
	"strings"

	"github.com/taibuivan/sqlrest/internal/catalog"
)

// Document builds the OpenAPI 3.0 JSON document (as a plain JSON-marshalable
// value, the way the rest of this module's response bodies are built)
// describing every table/view in cat plus the `/rpc/{name}` path template.
func Document(cat *catalog.Catalog, defaultSchema, title, version, serverURL string) map[string]any {
	paths := map[string]any{}
	schemas := map[string]any{}

	for _, table := range cat.Tables() {
		path := tablePath(table, defaultSchema)
		pathItem, tableSchema := tableOperations(table)
		paths[path] = pathItem
		schemas[table.Name] = tableSchema
	}

	paths["/rpc/{name}"] = rpcPathItem()

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       title,
			"description": "Auto-generated REST API from a SQL Server schema",
			"version":     version,
		},
		"servers": []any{
			map[string]any{"url": serverURL},
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": schemas,
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
		},
	}
}

func tablePath(table *catalog.TableInfo, defaultSchema string) string {
	if strings.EqualFold(table.Schema, defaultSchema) {
		return "/" + table.Name
	}
	return "/" + table.Schema + "/" + table.Name
}

// tableOperations builds the path item (GET always; POST/PATCH/DELETE
// unless table is a view) and the component schema describing its columns.
func tableOperations(table *catalog.TableInfo) (pathItem, tableSchema map[string]any) {
	schemaRef := "#/components/schemas/" + table.Name

	properties := map[string]any{}
	var required []any
	for _, col := range table.Columns {
		properties[col.Name] = columnSchema(col)
		if !col.Nullable && !col.IsIdentity && !col.HasDefault {
			required = append(required, col.Name)
		}
	}

	tableSchema = map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		tableSchema["required"] = required
	}

	filterParams := standardQueryParams()
	for _, col := range table.Columns {
		filterParams = append(filterParams, map[string]any{
			"name":        col.Name,
			"in":          "query",
			"description": fmt.Sprintf("Filter on %s (e.g. eq.value, gt.5, in.(a,b))", col.Name),
			"schema":      map[string]any{"type": "string"},
		})
	}

	pathItem = map[string]any{
		"get": map[string]any{
			"summary":    "Read " + table.Name,
			"parameters": filterParams,
			"responses": map[string]any{
				"200": map[string]any{
					"description": "List of " + table.Name,
					"content": map[string]any{
						"application/json":                   arraySchema(schemaRef),
						"text/csv":                           map[string]any{"schema": map[string]any{"type": "string"}},
						"application/vnd.pgrst.object+json":  map[string]any{"schema": map[string]any{"$ref": schemaRef}},
						"application/vnd.apache.arrow.stream": map[string]any{"schema": map[string]any{"type": "string", "format": "binary"}},
					},
					"headers": map[string]any{
						"Content-Range": map[string]any{
							"schema":      map[string]any{"type": "string"},
							"description": "Pagination range",
						},
					},
				},
			},
		},
	}

	if table.IsView {
		return pathItem, tableSchema
	}

	pathItem["post"] = map[string]any{
		"summary": "Insert into " + table.Name,
		"requestBody": map[string]any{
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{
						"oneOf": []any{
							map[string]any{"$ref": schemaRef},
							map[string]any{"type": "array", "items": map[string]any{"$ref": schemaRef}},
						},
					},
				},
			},
		},
		"responses": map[string]any{
			"201": map[string]any{"description": "Created", "content": map[string]any{"application/json": arraySchema(schemaRef)}},
		},
	}
	pathItem["patch"] = map[string]any{
		"summary":    "Update " + table.Name,
		"parameters": filterParams,
		"requestBody": map[string]any{
			"content": map[string]any{
				"application/json": map[string]any{"schema": map[string]any{"$ref": schemaRef}},
			},
		},
		"responses": map[string]any{
			"200": map[string]any{"description": "Updated", "content": map[string]any{"application/json": arraySchema(schemaRef)}},
		},
	}
	pathItem["delete"] = map[string]any{
		"summary":    "Delete from " + table.Name,
		"parameters": filterParams,
		"responses": map[string]any{
			"200": map[string]any{"description": "Deleted", "content": map[string]any{"application/json": arraySchema(schemaRef)}},
		},
	}

	return pathItem, tableSchema
}

func arraySchema(ref string) map[string]any {
	return map[string]any{
		"schema": map[string]any{
			"type":  "array",
			"items": map[string]any{"$ref": ref},
		},
	}
}

func standardQueryParams() []any {
	return []any{
		map[string]any{"name": "select", "in": "query", "description": "Column selection (e.g. col1,col2,related(*))", "schema": map[string]any{"type": "string"}},
		map[string]any{"name": "order", "in": "query", "description": "Ordering (e.g. name.asc,age.desc)", "schema": map[string]any{"type": "string"}},
		map[string]any{"name": "limit", "in": "query", "description": "Maximum number of rows", "schema": map[string]any{"type": "integer"}},
		map[string]any{"name": "offset", "in": "query", "description": "Number of rows to skip", "schema": map[string]any{"type": "integer"}},
	}
}

func rpcPathItem() map[string]any {
	return map[string]any{
		"post": map[string]any{
			"summary": "Execute stored procedure",
			"parameters": []any{
				map[string]any{"name": "name", "in": "path", "required": true, "schema": map[string]any{"type": "string"}},
			},
			"requestBody": map[string]any{
				"content": map[string]any{
					"application/json": map[string]any{
						"schema": map[string]any{"type": "object", "additionalProperties": true},
					},
				},
			},
			"responses": map[string]any{
				"200": map[string]any{
					"description": "Procedure executed",
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
						},
					},
				},
			},
		},
	}
}

// columnSchema maps a catalog column's SQL Server data type to its OpenAPI
// {type[, format]} pair.
func columnSchema(col catalog.ColumnInfo) map[string]any {
	typeName, format := sqlTypeToOpenAPI(col.DataType)
	prop := map[string]any{"type": typeName}
	if format != "" {
		prop["format"] = format
	}
	if col.Nullable {
		prop["nullable"] = true
	}
	if col.IsIdentity {
		prop["readOnly"] = true
	}
	return prop
}

func sqlTypeToOpenAPI(dataType string) (typeName, format string) {
	switch strings.ToLower(dataType) {
	case "bit":
		return "boolean", ""
	case "tinyint", "smallint", "int":
		return "integer", "int32"
	case "bigint":
		return "integer", "int64"
	case "float", "real":
		return "number", "double"
	case "decimal", "numeric", "money", "smallmoney":
		return "number", "decimal"
	case "char", "varchar", "nchar", "nvarchar", "text", "ntext":
		return "string", ""
	case "date":
		return "string", "date"
	case "time":
		return "string", "time"
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return "string", "date-time"
	case "uniqueidentifier":
		return "string", "uuid"
	case "binary", "varbinary", "image":
		return "string", "byte"
	case "xml":
		return "string", "xml"
	default:
		return "string", ""
	}
}
