// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"encoding/json"

	"github.com/aleutian-labs/stepseq/internal/proto"
)

// broadcastMutation increments serverSeq, marks the session dirty, and
// fans the resulting broadcast out to every attached stream. clientSeq
// is echoed when the triggering command carried one, even for no-op
// mutations — callers pass it through unconditionally.
func (e *Engine) broadcastMutation(bType string, clientSeq *uint64, fields map[string]interface{}) {
	e.serverSeq++
	e.dirty = true
	seq := e.serverSeq
	b := proto.Broadcast{
		Type:      bType,
		Seq:       &seq,
		ClientSeq: clientSeq,
		Fields:    fields,
	}
	e.sendAll(b)
	e.metrics.BroadcastsTotal.WithLabelValues(bType).Inc()
}

// broadcastInformationalExcept sends a non-mutating, non-hashed event
// (player_joined, playback_started, cursor_moved, ...) to every stream
// except originator. These never touch serverSeq and carry no "seq"
// field at all: they are not part of the mutation-confirmation
// contract.
func (e *Engine) broadcastInformationalExcept(originator, bType string, fields map[string]interface{}) {
	b := proto.Broadcast{Type: bType, PlayerID: originator, Fields: fields}
	payload, err := json.Marshal(b)
	if err != nil {
		e.log.Error("marshal informational broadcast failed", "type", bType, "error", err)
		return
	}
	for playerID, s := range e.streams {
		if playerID == originator {
			continue
		}
		e.send(s, payload)
	}
	e.metrics.BroadcastsTotal.WithLabelValues(bType).Inc()
}

// broadcastInformationalAll is broadcastInformationalExcept without an
// exclusion, used for events with no single originating stream.
func (e *Engine) broadcastInformationalAll(bType string, fields map[string]interface{}) {
	b := proto.Broadcast{Type: bType, Fields: fields}
	e.sendAll(b)
	e.metrics.BroadcastsTotal.WithLabelValues(bType).Inc()
}

func (e *Engine) sendAll(b proto.Broadcast) {
	payload, err := json.Marshal(b)
	if err != nil {
		e.log.Error("marshal broadcast failed", "type", b.Type, "error", err)
		return
	}
	for _, s := range e.streams {
		e.send(s, payload)
	}
}

// send delivers payload to one stream, logging (not blocking) if the
// stream's outbound buffer is saturated.
func (e *Engine) send(s *Stream, payload []byte) {
	if !s.trySend(payload) {
		e.log.Warn("stream outbound buffer full, dropping frame", "player_id", s.PlayerID)
	}
}

// sendTo marshals and delivers a single value (snapshot, error frame,
// clock sync reply, ...) to one stream only.
func (e *Engine) sendTo(s *Stream, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		e.log.Error("marshal direct reply failed", "error", err)
		return
	}
	e.send(s, payload)
}

// sendError delivers a typed error frame to one stream. It does not
// touch MutationsRejectedTotal itself: callers that reject a mutation
// increment it with the reason-specific label before calling in, so
// counting here would double it. The reply sent when a post-dispatch
// flush fails is not counted as a rejection.
func (e *Engine) sendError(playerID, message string) {
	s, ok := e.streams[playerID]
	if !ok {
		return
	}
	e.sendTo(s, proto.NewErrorFrame(message))
}

// stateSyncFrame is the attach-time full-state payload. It
// carries no serverSeq: a joiner's pending-mutation tracker has
// nothing pending yet.
type stateSyncFrame struct {
	Type        string      `json:"type"`
	State       interface{} `json:"state"`
	PlayerCount int         `json:"playerCount"`
}

func (e *Engine) sendStateSync(s *Stream) {
	e.sendTo(s, stateSyncFrame{
		Type:        proto.BroadcastStateSync,
		State:       e.session.State,
		PlayerCount: len(e.streams),
	})
}

// snapshotFrame is the request_snapshot reply: current
// state plus enough metadata for the requester to reconcile its
// pending-mutation tracker.
type snapshotFrame struct {
	Type             string             `json:"type"`
	State            interface{}        `json:"state"`
	Players          []interface{}      `json:"players"`
	PlayerID         string             `json:"playerId"`
	ServerSeq        uint64             `json:"serverSeq"`
	PlayingPlayerIDs []string           `json:"playingPlayerIds"`
	Immutable        *bool              `json:"immutable,omitempty"`
}

func (e *Engine) sendSnapshot(playerID string) {
	s, ok := e.streams[playerID]
	if !ok {
		return
	}
	players := make([]interface{}, 0, len(e.players))
	for _, p := range e.players {
		players = append(players, p)
	}
	playing := make([]string, 0, len(e.playing))
	for id, on := range e.playing {
		if on {
			playing = append(playing, id)
		}
	}
	var immutable *bool
	if e.session.Immutable {
		v := true
		immutable = &v
	}
	e.sendTo(s, snapshotFrame{
		Type:             proto.BroadcastSnapshot,
		State:            e.session.State,
		Players:          players,
		PlayerID:         playerID,
		ServerSeq:        e.serverSeq,
		PlayingPlayerIDs: playing,
		Immutable:        immutable,
	})
}
