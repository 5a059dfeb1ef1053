// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package catalog introspects a SQL Server database's tables, views, columns,
keys, and change-tracking status into an in-memory model, and resolves
embed requests (the `select=table(...)` grammar) against that model.

The catalog is loaded wholesale by [Store.Reload]; a failed reload never
tears down the previous, still-serving snapshot.
*/
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// ColumnInfo describes one column of a table or view.
type ColumnInfo struct {
	Name             string
	DataType         string
	MaxLength        sql.NullInt64
	Precision        sql.NullInt64
	Scale            sql.NullInt64
	Nullable         bool
	OrdinalPosition  int
	IsIdentity       bool
	HasDefault       bool
	IsComputed       bool
}

// ForeignKey describes one column-level leg of a foreign key constraint.
type ForeignKey struct {
	ConstraintName string
	Column         string
	RefSchema      string
	RefTable       string
	RefColumn      string
}

// TableInfo describes one table or view and everything the query engine
// needs to know about it: its columns, keys, and change-tracking status.
type TableInfo struct {
	Schema               string
	Name                 string
	Columns              []ColumnInfo
	PrimaryKey           []string
	ForeignKeys          []ForeignKey
	UniqueConstraints    [][]string
	IsView               bool
	ChangeTrackingEnabled bool
}

// FullName returns the bracket-quoted `[schema].[name]` identifier.
func (t *TableInfo) FullName() string {
	return fmt.Sprintf("[%s].[%s]", t.Schema, t.Name)
}

// Column looks up a column by case-insensitive name.
func (t *TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// InsertableColumns returns the columns that may appear in an INSERT column
// list: everything except identity columns (identity values come from the
// server; computed columns are rejected by SQL Server itself if supplied,
// so they're left for sqlgen to pass through unfiltered).
func (t *TableInfo) InsertableColumns() []ColumnInfo {
	out := make([]ColumnInfo, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.IsIdentity {
			out = append(out, c)
		}
	}
	return out
}

// JoinType is the cardinality of a resolved embed relationship.
type JoinType int

const (
	ManyToOne JoinType = iota
	OneToMany
)

// EmbedInfo is a resolved `select=name(...)` or `select=name!hint(...)`
// relationship: which table to join, which columns carry the join, and
// which side holds the "many".
type EmbedInfo struct {
	TargetSchema string
	TargetTable  string
	JoinType     JoinType
	SourceColumn string
	TargetColumn string
}

type tableKey struct {
	schema string
	name   string
}

func newTableKey(schema, name string) tableKey {
	return tableKey{schema: schema, name: name}
}

func newTableKeyFold(schema, name string) tableKey {
	return tableKey{schema: strings.ToLower(schema), name: strings.ToLower(name)}
}

type reverseFK struct {
	schema string
	table  string
	fk     ForeignKey
}

// Catalog is the immutable snapshot of one successful schema load. A
// [Store] swaps in a new Catalog atomically on each successful reload.
type Catalog struct {
	tables      map[tableKey]*TableInfo
	reverseFKs  map[tableKey][]reverseFK
}

// Table looks up a table or view by schema and name, exact match first and
// falling back to a case-insensitive scan.
func (c *Catalog) Table(schema, name string) (*TableInfo, bool) {
	if t, ok := c.tables[newTableKey(schema, name)]; ok {
		return t, true
	}
	want := newTableKeyFold(schema, name)
	for k, t := range c.tables {
		if newTableKeyFold(k.schema, k.name) == want {
			return t, true
		}
	}
	return nil, false
}

// ReferencingTables returns the (schema, table, fk) triples of every table
// that holds a foreign key pointing at (schema, table).
func (c *Catalog) ReferencingTables(schema, name string) []reverseFK {
	return c.reverseFKs[newTableKeyFold(schema, name)]
}

// FindEmbed resolves an embed name from a `select=` clause against the
// source table, trying a many-to-one relationship (source holds the FK)
// before a one-to-many relationship (embed name holds the FK back to
// source). hintFK, when non-empty, disambiguates between multiple
// candidate foreign keys by constraint name.
func (c *Catalog) FindEmbed(sourceSchema, sourceTable, embedName, hintFK string) (EmbedInfo, bool) {
	source, ok := c.Table(sourceSchema, sourceTable)
	if !ok {
		return EmbedInfo{}, false
	}

	for _, fk := range source.ForeignKeys {
		if !strings.EqualFold(fk.RefTable, embedName) {
			continue
		}
		if hintFK != "" && !strings.EqualFold(fk.ConstraintName, hintFK) {
			continue
		}
		return EmbedInfo{
			TargetSchema: fk.RefSchema,
			TargetTable:  fk.RefTable,
			JoinType:     ManyToOne,
			SourceColumn: fk.Column,
			TargetColumn: fk.RefColumn,
		}, true
	}

	for _, ref := range c.ReferencingTables(sourceSchema, sourceTable) {
		if !strings.EqualFold(ref.table, embedName) {
			continue
		}
		if hintFK != "" && !strings.EqualFold(ref.fk.ConstraintName, hintFK) {
			continue
		}
		return EmbedInfo{
			TargetSchema: ref.schema,
			TargetTable:  ref.table,
			JoinType:     OneToMany,
			SourceColumn: ref.fk.RefColumn,
			TargetColumn: ref.fk.Column,
		}, true
	}

	return EmbedInfo{}, false
}

// Tables returns every table and view in the catalog, in no particular
// order. Used by openapi generation.
func (c *Catalog) Tables() []*TableInfo {
	out := make([]*TableInfo, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	return out
}

// Store holds the current [Catalog] snapshot behind a read-write lock and
// knows how to refresh it from a live connection.
type Store struct {
	mu  sync.RWMutex
	cur *Catalog
}

// NewStore returns an empty Store; call [Store.Reload] at least once
// before serving requests.
func NewStore() *Store {
	return &Store{}
}

// Current returns the most recently loaded catalog. It is nil until the
// first successful [Store.Reload].
func (s *Store) Current() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Reload re-introspects the schema from db and, only on full success,
// swaps it in as the current snapshot. A query failure midway leaves the
// previous snapshot (if any) untouched and is returned to the caller.
func (s *Store) Reload(ctx context.Context, db *sql.DB) error {
	cat, err := load(ctx, db)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = cat
	s.mu.Unlock()
	return nil
}

func load(ctx context.Context, db *sql.DB) (*Catalog, error) {
	tables, err := loadTables(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("catalog: load tables: %w", err)
	}
	if err := loadColumns(ctx, db, tables); err != nil {
		return nil, fmt.Errorf("catalog: load columns: %w", err)
	}
	if err := loadPrimaryKeys(ctx, db, tables); err != nil {
		return nil, fmt.Errorf("catalog: load primary keys: %w", err)
	}
	reverseFKs, err := loadForeignKeys(ctx, db, tables)
	if err != nil {
		return nil, fmt.Errorf("catalog: load foreign keys: %w", err)
	}
	if err := loadUniqueConstraints(ctx, db, tables); err != nil {
		return nil, fmt.Errorf("catalog: load unique constraints: %w", err)
	}
	if err := loadChangeTracking(ctx, db, tables); err != nil {
		return nil, fmt.Errorf("catalog: load change tracking: %w", err)
	}

	return &Catalog{tables: tables, reverseFKs: reverseFKs}, nil
}

const tablesQuery = `
SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE
FROM INFORMATION_SCHEMA.TABLES
ORDER BY TABLE_SCHEMA, TABLE_NAME`

func loadTables(ctx context.Context, db *sql.DB) (map[tableKey]*TableInfo, error) {
	rows, err := db.QueryContext(ctx, tablesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make(map[tableKey]*TableInfo)
	for rows.Next() {
		var schema, name, kind string
		if err := rows.Scan(&schema, &name, &kind); err != nil {
			return nil, err
		}
		tables[newTableKey(schema, name)] = &TableInfo{
			Schema: schema,
			Name:   name,
			IsView: strings.Contains(strings.ToUpper(kind), "VIEW"),
		}
	}
	return tables, rows.Err()
}

const columnsQuery = `
SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE,
       c.CHARACTER_MAXIMUM_LENGTH, c.NUMERIC_PRECISION, c.NUMERIC_SCALE,
       c.IS_NULLABLE, c.ORDINAL_POSITION, c.COLUMN_DEFAULT,
       COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') AS IS_IDENTITY,
       COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsComputed') AS IS_COMPUTED
FROM INFORMATION_SCHEMA.COLUMNS c
ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`

func loadColumns(ctx context.Context, db *sql.DB, tables map[tableKey]*TableInfo) error {
	rows, err := db.QueryContext(ctx, columnsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			schema, name, col, dataType, nullable string
			maxLen, precision, scale              sql.NullInt64
			ordinal                                int
			def                                    sql.NullString
			isIdentity, isComputed                 sql.NullInt64
		)
		if err := rows.Scan(&schema, &name, &col, &dataType, &maxLen, &precision, &scale,
			&nullable, &ordinal, &def, &isIdentity, &isComputed); err != nil {
			return err
		}
		t, ok := tables[newTableKey(schema, name)]
		if !ok {
			continue
		}
		t.Columns = append(t.Columns, ColumnInfo{
			Name:            col,
			DataType:        dataType,
			MaxLength:       maxLen,
			Precision:       precision,
			Scale:           scale,
			Nullable:        strings.EqualFold(nullable, "YES"),
			OrdinalPosition: ordinal,
			IsIdentity:      isIdentity.Int64 == 1,
			HasDefault:      def.Valid,
			IsComputed:      isComputed.Int64 == 1,
		})
	}
	return rows.Err()
}

const primaryKeysQuery = `
SELECT ku.TABLE_SCHEMA, ku.TABLE_NAME, ku.COLUMN_NAME
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
    ON tc.CONSTRAINT_NAME = ku.CONSTRAINT_NAME
    AND tc.TABLE_SCHEMA = ku.TABLE_SCHEMA
WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
ORDER BY ku.TABLE_SCHEMA, ku.TABLE_NAME, ku.ORDINAL_POSITION`

func loadPrimaryKeys(ctx context.Context, db *sql.DB, tables map[tableKey]*TableInfo) error {
	rows, err := db.QueryContext(ctx, primaryKeysQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var schema, name, col string
		if err := rows.Scan(&schema, &name, &col); err != nil {
			return err
		}
		if t, ok := tables[newTableKey(schema, name)]; ok {
			t.PrimaryKey = append(t.PrimaryKey, col)
		}
	}
	return rows.Err()
}

const foreignKeysQuery = `
SELECT
    fk.name AS FK_NAME,
    OBJECT_SCHEMA_NAME(fkc.parent_object_id) AS TABLE_SCHEMA,
    OBJECT_NAME(fkc.parent_object_id) AS TABLE_NAME,
    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS COLUMN_NAME,
    OBJECT_SCHEMA_NAME(fkc.referenced_object_id) AS REF_SCHEMA,
    OBJECT_NAME(fkc.referenced_object_id) AS REF_TABLE,
    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS REF_COLUMN
FROM sys.foreign_keys fk
JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
ORDER BY fk.name`

func loadForeignKeys(ctx context.Context, db *sql.DB, tables map[tableKey]*TableInfo) (map[tableKey][]reverseFK, error) {
	rows, err := db.QueryContext(ctx, foreignKeysQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reverse := make(map[tableKey][]reverseFK)
	for rows.Next() {
		var fkName, schema, name, col, refSchema, refTable, refCol string
		if err := rows.Scan(&fkName, &schema, &name, &col, &refSchema, &refTable, &refCol); err != nil {
			return nil, err
		}
		fk := ForeignKey{
			ConstraintName: fkName,
			Column:         col,
			RefSchema:      refSchema,
			RefTable:       refTable,
			RefColumn:      refCol,
		}
		if t, ok := tables[newTableKey(schema, name)]; ok {
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
		refKey := newTableKeyFold(refSchema, refTable)
		reverse[refKey] = append(reverse[refKey], reverseFK{schema: schema, table: name, fk: fk})
	}
	return reverse, rows.Err()
}

const uniqueConstraintsQuery = `
SELECT tc.TABLE_SCHEMA, tc.TABLE_NAME, tc.CONSTRAINT_NAME, ku.COLUMN_NAME
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
    ON tc.CONSTRAINT_NAME = ku.CONSTRAINT_NAME
    AND tc.TABLE_SCHEMA = ku.TABLE_SCHEMA
WHERE tc.CONSTRAINT_TYPE = 'UNIQUE'
ORDER BY tc.TABLE_SCHEMA, tc.TABLE_NAME, tc.CONSTRAINT_NAME, ku.ORDINAL_POSITION`

func loadUniqueConstraints(ctx context.Context, db *sql.DB, tables map[tableKey]*TableInfo) error {
	rows, err := db.QueryContext(ctx, uniqueConstraintsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	type constraintKey struct {
		schema, table, name string
	}
	order := make([]constraintKey, 0)
	cols := make(map[constraintKey][]string)

	for rows.Next() {
		var schema, table, constraint, col string
		if err := rows.Scan(&schema, &table, &constraint, &col); err != nil {
			return err
		}
		k := constraintKey{schema: schema, table: table, name: constraint}
		if _, seen := cols[k]; !seen {
			order = append(order, k)
		}
		cols[k] = append(cols[k], col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		if t, ok := tables[newTableKey(k.schema, k.table)]; ok {
			t.UniqueConstraints = append(t.UniqueConstraints, cols[k])
		}
	}
	return nil
}

const changeTrackingQuery = `
SELECT s.name AS schema_name, t.name AS table_name
FROM sys.change_tracking_tables ct
JOIN sys.tables t ON ct.object_id = t.object_id
JOIN sys.schemas s ON t.schema_id = s.schema_id`

// loadChangeTracking marks tables with change tracking enabled. Change
// tracking may not be turned on for the database at all, in which case
// the query itself fails (not merely returns zero rows) — that's not a
// load failure, just an empty result.
func loadChangeTracking(ctx context.Context, db *sql.DB, tables map[tableKey]*TableInfo) error {
	rows, err := db.QueryContext(ctx, changeTrackingQuery)
	if err != nil {
		return nil
	}
	defer rows.Close()

	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil
		}
		if t, ok := tables[newTableKey(schema, name)]; ok {
			t.ChangeTrackingEnabled = true
		}
	}
	return nil
}
