// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aleutian-labs/stepseq/internal/engine"
	"github.com/aleutian-labs/stepseq/internal/logging"
	"github.com/aleutian-labs/stepseq/internal/metrics"
	"github.com/aleutian-labs/stepseq/internal/model"
)

// upgrader configures the WS handshake. Buffers are sized for
// step-sequencer frames (a toggle, a tempo change, a batch op) rather
// than document/chat payloads, and CheckOrigin is permissive by
// default since sessions are meant to be shared by URL across origins;
// deployments that need to lock this down terminate same-origin
// enforcement at a reverse proxy in front of stepseqd.
var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// WebSocketHandlers implements the per-session realtime endpoint
// upgrade, attach to the session's actor, and pump
// frames in both directions until the socket closes.
type WebSocketHandlers struct {
	registry *engine.Registry
	metrics  *metrics.SessionMetrics
	log      *logging.Logger
}

// NewWebSocketHandlers builds the handler set sharing registry with
// the REST handlers, so a session attached over WS and read/written
// over HTTP always goes through the same live Engine.
func NewWebSocketHandlers(reg *engine.Registry, m *metrics.SessionMetrics, log *logging.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{registry: reg, metrics: m, log: log}
}

// Handle upgrades GET /ws/sessions/:id and drives one player's
// connection until it closes.
func (h *WebSocketHandlers) Handle(c *gin.Context) {
	id := c.Param("id")

	e, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			respondError(c, http.StatusNotFound, "session not found")
			return
		}
		h.log.Error("session lookup failed", "session_id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to load session")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	playerID := uuid.New().String()
	stream := engine.NewStream(playerID)

	if err := e.Attach(playerID, stream); err != nil {
		h.log.Info("attach rejected", "session_id", id, "player_id", playerID, "error", err)
		_ = conn.WriteJSON(map[string]string{"type": "error", "message": err.Error()})
		return
	}

	done := make(chan struct{})
	go h.writePump(conn, stream, done)
	h.readPump(conn, e, playerID, stream)

	e.Detach(playerID, websocket.CloseNormalClosure, "client disconnected")
	<-done
}

// readPump forwards every inbound frame to the session's actor after
// passing it through the stream's token bucket. Frames
// arriving faster than the limit are dropped rather than queued, so a
// flooding client never builds unbounded backlog in front of the
// single-writer actor.
func (h *WebSocketHandlers) readPump(conn *websocket.Conn, e *engine.Engine, playerID string, stream *engine.Stream) {
	conn.SetReadLimit(model.MaxMessageSize)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !stream.Limiter.Allow() {
			h.metrics.MutationsRejectedTotal.WithLabelValues("rate_limited").Inc()
			continue
		}
		e.Dispatch(playerID, raw)
	}
}

// writePump drains stream's outbound buffer into the socket until the
// engine closes it (on detach or shutdown).
func (h *WebSocketHandlers) writePump(conn *websocket.Conn, stream *engine.Stream, done chan struct{}) {
	defer close(done)
	for payload := range stream.Outbound() {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
