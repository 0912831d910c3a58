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

import "golang.org/x/time/rate"

// streamBufferSize is the outbound buffer depth for one attached
// stream. Step-sequencer broadcast volume is human-interaction rate
// (toggles, tempo changes), not market-tick rate, so this is sized
// down from the connection pattern this is grounded on.
const streamBufferSize = 64

// Inbound rate limit: generous enough for a human dragging a cursor or
// scrubbing steps, tight enough to cap a misbehaving client's
// cursor_move flood before it can saturate an outbound buffer for
// everyone else in the session.
const (
	inboundRateLimit = 40 // frames/sec, sustained
	inboundBurst     = 80
)

// Stream is one player's attached connection, as seen by the engine.
// The engine never touches the transport directly: the router owns
// the websocket (or other) connection and drains Outbound() into it,
// feeding inbound frames back through Engine.Dispatch. Limiter is the
// per-connection inbound token bucket the router checks before
// forwarding a frame to Dispatch.
type Stream struct {
	PlayerID string
	Limiter  *rate.Limiter

	outbox chan []byte
}

// NewStream allocates a stream for playerID with a fixed-size outbound
// buffer and its own inbound rate limiter.
func NewStream(playerID string) *Stream {
	return &Stream{
		PlayerID: playerID,
		Limiter:  rate.NewLimiter(rate.Limit(inboundRateLimit), inboundBurst),
		outbox:   make(chan []byte, streamBufferSize),
	}
}

// Outbound is the channel the router's writer goroutine drains.
func (s *Stream) Outbound() <-chan []byte {
	return s.outbox
}

// trySend enqueues payload without blocking. It reports false if the
// stream's buffer is full, meaning the consumer is too slow; the
// caller decides whether that warrants a detach.
func (s *Stream) trySend(payload []byte) bool {
	select {
	case s.outbox <- payload:
		return true
	default:
		return false
	}
}

// Close closes the outbound channel, signalling the router's writer
// goroutine to stop. Must only be called once, from the engine's run
// loop after the stream has been removed from play.
func (s *Stream) Close() {
	close(s.outbox)
}
