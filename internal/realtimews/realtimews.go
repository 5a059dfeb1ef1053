// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package realtimews upgrades `GET /realtime` to a WebSocket connection and
pumps [changefeed.Message] values across it in both directions. All
subscription bookkeeping lives in [internal/changefeed]; this package only
owns the socket.
*/
package realtimews

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/taibuivan/sqlrest/internal/changefeed"
	"github.com/taibuivan/sqlrest/internal/platform/ctxutil"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
	"github.com/taibuivan/sqlrest/pkg/uuidv7"
)

// outboxSize bounds how many pending messages a slow client can
// accumulate before the engine starts dropping them at the source.
const outboxSize = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is the shape of every frame a subscriber sends.
type clientMessage struct {
	Type   string   `json:"type"`
	ID     string   `json:"id"`
	Table  string   `json:"table"`
	Filter string   `json:"filter"`
	Events []string `json:"events"`
}

// Handler serves the realtime WebSocket endpoint against one
// [changefeed.Engine].
type Handler struct {
	engine   *changefeed.Engine
	verifier *tokenauth.Verifier
}

// NewHandler constructs a Handler. verifier may be nil, in which case every
// connection is treated as anonymous — the same fallback [tokenauth.Verifier]
// applies to an absent bearer header on table endpoints.
func NewHandler(engine *changefeed.Engine, verifier *tokenauth.Verifier) *Handler {
	return &Handler{engine: engine, verifier: verifier}
}

// ServeHTTP upgrades the request and pumps messages until the client
// disconnects, at which point every subscription it held is torn down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.verifier != nil {
		token := r.URL.Query().Get("token")
		authHeader := ""
		if token != "" {
			authHeader = "Bearer " + token
		}
		if _, _, err := h.verifier.Authenticate(r.Context(), authHeader); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ctxutil.GetLogger(r.Context()).WarnContext(r.Context(), "realtime_upgrade_failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	clientID := uuidv7.NewUUID()
	outbox := make(chan changefeed.Message, outboxSize)

	done := make(chan struct{})
	go h.pumpOutbox(conn, outbox, done)

	h.readLoop(r, conn, clientID, outbox)

	close(outbox)
	<-done
	h.engine.RemoveClient(clientID)
}

// pumpOutbox serializes every engine message onto the socket until outbox
// is closed or a write fails.
func (h *Handler) pumpOutbox(conn *websocket.Conn, outbox <-chan changefeed.Message, done chan<- struct{}) {
	defer close(done)
	for msg := range outbox {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readLoop handles subscribe/unsubscribe/ping frames from the client until
// it disconnects or sends something unreadable enough to close the socket.
func (h *Handler) readLoop(r *http.Request, conn *websocket.Conn, clientID uuid.UUID, outbox chan<- changefeed.Message) {
	logger := ctxutil.GetLogger(r.Context())
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			trySend(outbox, changefeed.Message{Type: "error", Message: "invalid JSON"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			tableKey, err := h.engine.Subscribe(clientID, msg.ID, msg.Table, msg.Filter, msg.Events, outbox)
			if err != nil {
				trySend(outbox, changefeed.Message{Type: "error", ID: msg.ID, Message: err.Error()})
				continue
			}
			trySend(outbox, changefeed.Message{Type: "subscribed", ID: msg.ID, Table: tableKey})
		case "unsubscribe":
			h.engine.Unsubscribe(clientID, msg.ID)
			trySend(outbox, changefeed.Message{Type: "unsubscribed", ID: msg.ID})
		case "ping":
			trySend(outbox, changefeed.Message{Type: "pong"})
		default:
			logger.DebugContext(r.Context(), "realtime_unknown_message", slog.String("type", msg.Type))
			trySend(outbox, changefeed.Message{Type: "error", Message: "unknown message type"})
		}
	}
}

// trySend never blocks the read loop on a full outbox; the engine's own
// fan-out applies the same non-blocking rule to change events.
func trySend(outbox chan<- changefeed.Message, msg changefeed.Message) {
	select {
	case outbox <- msg:
	default:
	}
}
