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
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/aleutian-labs/stepseq/internal/proto"
)

func dialSession(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sessions/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestWebSocketAttachSendsStateSyncAndBroadcastsJoin(t *testing.T) {
	router, st, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	sess := &model.Session{ID: "sess-ws-1", State: model.NewDefaultSessionState()}
	require.NoError(t, st.Save(context.Background(), sess))

	first := dialSession(t, server, sess.ID)
	frame := readFrame(t, first)
	require.Equal(t, proto.BroadcastStateSync, frame["type"])

	second := dialSession(t, server, sess.ID)
	joined := readFrame(t, first)
	require.Equal(t, proto.BroadcastPlayerJoined, joined["type"])

	secondSync := readFrame(t, second)
	require.Equal(t, proto.BroadcastStateSync, secondSync["type"])
	require.Equal(t, float64(2), secondSync["playerCount"])
}

func TestWebSocketDispatchRoutesCursorMoveToOtherStreams(t *testing.T) {
	router, st, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	sess := &model.Session{ID: "sess-ws-2", State: model.NewDefaultSessionState()}
	require.NoError(t, st.Save(context.Background(), sess))

	first := dialSession(t, server, sess.ID)
	readFrame(t, first) // initial state_sync

	second := dialSession(t, server, sess.ID)
	readFrame(t, first)  // player_joined
	readFrame(t, second) // initial state_sync

	require.NoError(t, first.WriteJSON(map[string]interface{}{
		"type": proto.TypeCursorMove,
		"x":    0.5,
		"y":    0.25,
	}))

	moved := readFrame(t, second)
	require.Equal(t, proto.BroadcastCursorMoved, moved["type"])
}

func TestWebSocketUnknownSessionReturnsNotFoundBeforeUpgrade(t *testing.T) {
	router, _, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sessions/" + validUUID()
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 404, resp.StatusCode)
}
