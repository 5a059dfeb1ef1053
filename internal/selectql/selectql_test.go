// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package selectql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/selectql"
)

func TestParse_Star(t *testing.T) {
	nodes, err := selectql.Parse("*")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.True(t, selectql.HasStar(nodes))
}

func TestParse_Empty(t *testing.T) {
	nodes, err := selectql.Parse("")
	require.NoError(t, err)
	assert.True(t, selectql.HasStar(nodes))
}

func TestParse_Columns(t *testing.T) {
	nodes, err := selectql.Parse("id,name")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, selectql.Columns(nodes))
}

func TestParse_Embed(t *testing.T) {
	nodes, err := selectql.Parse("id,customer(name)")
	require.NoError(t, err)
	embeds := selectql.Embeds(nodes)
	require.Len(t, embeds, 1)
	assert.Equal(t, "customer", embeds[0].Name)
	assert.Equal(t, []string{"name"}, selectql.Columns(embeds[0].Inner))
}

func TestParse_EmbedFKHint(t *testing.T) {
	nodes, err := selectql.Parse("orders!fk_customer_orders(id)")
	require.NoError(t, err)
	embeds := selectql.Embeds(nodes)
	require.Len(t, embeds, 1)
	assert.Equal(t, "fk_customer_orders", embeds[0].FKHint)
}

func TestParse_NestedEmbed(t *testing.T) {
	nodes, err := selectql.Parse("id,orders(id,items(sku))")
	require.NoError(t, err)
	embeds := selectql.Embeds(nodes)
	require.Len(t, embeds, 1)
	inner := selectql.Embeds(embeds[0].Inner)
	require.Len(t, inner, 1)
	assert.Equal(t, "items", inner[0].Name)
}

func TestParse_UnmatchedParen(t *testing.T) {
	_, err := selectql.Parse("orders(id")
	require.Error(t, err)
}

func TestParse_Alias(t *testing.T) {
	nodes, err := selectql.Parse("n:name")
	require.NoError(t, err)
	col := nodes[0].(selectql.Column)
	assert.Equal(t, "n", col.Alias)
	assert.Equal(t, "name", col.Name)
}

func TestRoundTrip(t *testing.T) {
	src := "id,customer(name),orders!fk_hint(id,items(sku))"
	nodes, err := selectql.Parse(src)
	require.NoError(t, err)
	serialized := selectql.String(nodes)
	reparsed, err := selectql.Parse(serialized)
	require.NoError(t, err)
	assert.Equal(t, nodes, reparsed)
}
