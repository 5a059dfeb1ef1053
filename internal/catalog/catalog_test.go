// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureCatalog() *Catalog {
	customers := &TableInfo{
		Schema:      "dbo",
		Name:        "customers",
		PrimaryKey:  []string{"id"},
		Columns:     []ColumnInfo{{Name: "id", IsIdentity: true}, {Name: "name"}},
	}
	orders := &TableInfo{
		Schema:     "dbo",
		Name:       "orders",
		PrimaryKey: []string{"id"},
		Columns:    []ColumnInfo{{Name: "id", IsIdentity: true}, {Name: "customer_id"}},
		ForeignKeys: []ForeignKey{
			{ConstraintName: "fk_orders_customer", Column: "customer_id", RefSchema: "dbo", RefTable: "customers", RefColumn: "id"},
		},
	}

	tables := map[tableKey]*TableInfo{
		newTableKey("dbo", "customers"): customers,
		newTableKey("dbo", "orders"):    orders,
	}
	reverse := map[tableKey][]reverseFK{
		newTableKeyFold("dbo", "customers"): {
			{schema: "dbo", table: "orders", fk: orders.ForeignKeys[0]},
		},
	}
	return &Catalog{tables: tables, reverseFKs: reverse}
}

func TestTable_CaseInsensitive(t *testing.T) {
	c := fixtureCatalog()
	tbl, ok := c.Table("DBO", "Orders")
	require.True(t, ok)
	assert.Equal(t, "orders", tbl.Name)
}

func TestTable_Missing(t *testing.T) {
	c := fixtureCatalog()
	_, ok := c.Table("dbo", "nope")
	assert.False(t, ok)
}

func TestFindEmbed_ManyToOne(t *testing.T) {
	c := fixtureCatalog()
	embed, ok := c.FindEmbed("dbo", "orders", "customers", "")
	require.True(t, ok)
	assert.Equal(t, ManyToOne, embed.JoinType)
	assert.Equal(t, "customer_id", embed.SourceColumn)
	assert.Equal(t, "id", embed.TargetColumn)
}

func TestFindEmbed_OneToMany(t *testing.T) {
	c := fixtureCatalog()
	embed, ok := c.FindEmbed("dbo", "customers", "orders", "")
	require.True(t, ok)
	assert.Equal(t, OneToMany, embed.JoinType)
	assert.Equal(t, "id", embed.SourceColumn)
	assert.Equal(t, "customer_id", embed.TargetColumn)
}

func TestFindEmbed_FKHintMismatch(t *testing.T) {
	c := fixtureCatalog()
	_, ok := c.FindEmbed("dbo", "orders", "customers", "fk_does_not_exist")
	assert.False(t, ok)
}

func TestFindEmbed_NotFound(t *testing.T) {
	c := fixtureCatalog()
	_, ok := c.FindEmbed("dbo", "orders", "widgets", "")
	assert.False(t, ok)
}

func TestTableInfo_InsertableColumns(t *testing.T) {
	tbl := &TableInfo{Columns: []ColumnInfo{{Name: "id", IsIdentity: true}, {Name: "name"}}}
	cols := tbl.InsertableColumns()
	require.Len(t, cols, 1)
	assert.Equal(t, "name", cols[0].Name)
}

func TestTableInfo_FullName(t *testing.T) {
	tbl := &TableInfo{Schema: "dbo", Name: "orders"}
	assert.Equal(t, "[dbo].[orders]", tbl.FullName())
}

// failingConnector refuses every connection, so the first introspection
// query of a Reload fails.
type failingConnector struct{}

func (failingConnector) Connect(context.Context) (driver.Conn, error) {
	return nil, errors.New("connection refused")
}

func (failingConnector) Driver() driver.Driver { return nil }

func TestStore_ReloadFailureKeepsPrevious(t *testing.T) {
	s := NewStore()
	s.cur = fixtureCatalog()
	prev := s.Current()

	db := sql.OpenDB(failingConnector{})
	defer db.Close()

	// Current() must still return the last good snapshot after a failed Reload.
	require.Error(t, s.Reload(context.Background(), db))
	assert.Same(t, prev, s.Current())
}
