// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sqlident_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/sqlrest/internal/sqlident"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "[id]", sqlident.QuoteIdent("id"))
	assert.Equal(t, "[a]]b]", sqlident.QuoteIdent("a]b"))
}

func TestQuoteQualified(t *testing.T) {
	assert.Equal(t, "[dbo].[people]", sqlident.QuoteQualified("dbo", "people"))
}

func TestEscapeLiteral(t *testing.T) {
	assert.Equal(t, "O''Brien", sqlident.EscapeLiteral("O'Brien"))
	assert.Equal(t, "plain", sqlident.EscapeLiteral("plain"))
}
