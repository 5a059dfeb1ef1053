// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtimews

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/sqlrest/internal/changefeed"
)

func TestTrySend_DeliversWhenRoomAvailable(t *testing.T) {
	outbox := make(chan changefeed.Message, 1)
	trySend(outbox, changefeed.Message{Type: "pong"})

	select {
	case msg := <-outbox:
		assert.Equal(t, "pong", msg.Type)
	default:
		t.Fatal("expected a message on outbox")
	}
}

func TestTrySend_DropsWhenFull(t *testing.T) {
	outbox := make(chan changefeed.Message, 1)
	outbox <- changefeed.Message{Type: "first"}

	trySend(outbox, changefeed.Message{Type: "second"})

	assert.Equal(t, "first", (<-outbox).Type)
	select {
	case <-outbox:
		t.Fatal("expected outbox to have only one message")
	default:
	}
}
