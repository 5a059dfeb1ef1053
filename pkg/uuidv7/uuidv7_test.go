// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package uuidv7_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/sqlrest/pkg/uuidv7"
)

func TestNew_ReturnsParseableV7String(t *testing.T) {
	s := uuidv7.New()
	id, err := uuid.Parse(s)
	assert.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestNewUUID_ReturnsVersion7(t *testing.T) {
	id := uuidv7.NewUUID()
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestNewUUID_EachCallIsUnique(t *testing.T) {
	assert.NotEqual(t, uuidv7.NewUUID(), uuidv7.NewUUID())
}
