// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the per-session actor: the single-writer
// goroutine that owns one session's state, serializes every mutation
// from every attached stream, and write-throughs to durable storage
// on each change. There are no locks here — the actor's inbox channel
// is the only synchronization primitive.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aleutian-labs/stepseq/internal/logging"
	"github.com/aleutian-labs/stepseq/internal/metrics"
	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/aleutian-labs/stepseq/internal/proto"
	"github.com/aleutian-labs/stepseq/internal/store"
)

// ErrCapacity is returned by Attach when a session already holds
// MaxStreamsPerSession attached streams.
var ErrCapacity = errors.New("engine: stream capacity exceeded")

// ErrImmutable is returned by any HTTP-driven mutation (ReplaceState,
// Publish) attempted against an already-published session.
var ErrImmutable = errors.New("engine: session is published and immutable")

type commandKind int

const (
	cmdAttach commandKind = iota
	cmdDetach
	cmdDispatch
	cmdFlush
	cmdIdle
	cmdShutdown
	cmdSnapshot
	cmdReplaceState
	cmdPublish
	cmdIncrementRemix
	cmdStreamCount
)

// command is the single message shape funneled through an Engine's
// inbox. Exactly one goroutine (run) ever reads it, which is what
// makes every state transition in this package lock-free.
type command struct {
	kind     commandKind
	playerID string
	stream   *Stream
	raw      []byte
	code     int
	reason   string
	state    *model.SessionState

	replyErr     chan error
	replyDone    chan struct{}
	replyIdle    chan time.Duration
	replySession chan model.Session
	replyCount   chan int
}

// Engine owns one session's live state and every stream attached to
// it. Construct with New, which starts the actor goroutine; callers
// interact only through Attach/Detach/Dispatch/Flush/Snapshot/
// ReplaceState/Publish/Shutdown — every one of them a round trip
// through the single inbox, so HTTP and WS callers never race.
type Engine struct {
	id string

	store   store.Store
	metrics *metrics.SessionMetrics
	log     *logging.Logger

	inbox chan command

	session   model.Session
	streams   map[string]*Stream
	players   map[string]model.PlayerInfo
	playing   map[string]bool
	serverSeq uint64
	dirty     bool

	lastActivity time.Time
}

// New constructs an Engine over an already-loaded (or freshly
// defaulted) session and starts its actor goroutine. Callers own
// calling Shutdown when the session should stop running.
func New(sess *model.Session, st store.Store, m *metrics.SessionMetrics, log *logging.Logger) *Engine {
	e := &Engine{
		id:           sess.ID,
		store:        st,
		metrics:      m,
		log:          log.With("session_id", sess.ID),
		inbox:        make(chan command, 64),
		session:      *sess,
		streams:      make(map[string]*Stream),
		players:      make(map[string]model.PlayerInfo),
		playing:      make(map[string]bool),
		lastActivity: time.Now(),
	}
	go e.run()
	return e
}

// ID returns the session id this engine owns.
func (e *Engine) ID() string { return e.id }

func (e *Engine) run() {
	for cmd := range e.inbox {
		switch cmd.kind {
		case cmdAttach:
			e.handleAttach(cmd)
		case cmdDetach:
			e.handleDetach(cmd)
		case cmdDispatch:
			e.handleDispatch(cmd)
		case cmdFlush:
			e.handleFlush(cmd)
		case cmdIdle:
			cmd.replyIdle <- time.Since(e.lastActivity)
		case cmdSnapshot:
			cmd.replySession <- e.cloneSession()
		case cmdReplaceState:
			e.handleReplaceState(cmd)
		case cmdPublish:
			e.handlePublish(cmd)
		case cmdIncrementRemix:
			e.handleIncrementRemix(cmd)
		case cmdStreamCount:
			cmd.replyCount <- len(e.streams)
		case cmdShutdown:
			e.handleShutdown(cmd)
			return
		}
	}
}

// Attach registers stream under playerID, enforcing the per-session
// connection cap. On success the joiner has already
// received a state_sync and the rest of the session a player_joined
// broadcast by the time Attach returns.
func (e *Engine) Attach(playerID string, stream *Stream) error {
	reply := make(chan error, 1)
	e.inbox <- command{kind: cmdAttach, playerID: playerID, stream: stream, replyErr: reply}
	return <-reply
}

// Detach removes playerID's stream, purges its playback presence, and
// (if it was the last stream) synchronously flushes durable storage
// before returning.
func (e *Engine) Detach(playerID string, code int, reason string) {
	done := make(chan struct{})
	e.inbox <- command{kind: cmdDetach, playerID: playerID, code: code, reason: reason, replyDone: done}
	<-done
}

// Dispatch feeds one inbound frame from playerID into the session's
// serialized processing order. It does not block on the frame's
// effects; broadcasts land on the relevant streams' Outbound()
// channels asynchronously.
func (e *Engine) Dispatch(playerID string, raw []byte) {
	e.inbox <- command{kind: cmdDispatch, playerID: playerID, raw: raw}
}

// Flush forces a durable write if the session is dirty, and reports
// whether it succeeded.
func (e *Engine) Flush(_ context.Context) error {
	errCh := make(chan error, 1)
	done := make(chan struct{})
	e.inbox <- command{kind: cmdFlush, replyErr: errCh, replyDone: done}
	<-done
	return <-errCh
}

// IdleDuration reports how long it has been since the engine last
// processed an attach, detach or dispatch.
func (e *Engine) IdleDuration() time.Duration {
	reply := make(chan time.Duration, 1)
	e.inbox <- command{kind: cmdIdle, replyIdle: reply}
	return <-reply
}

// StreamCount reports how many streams are currently attached,
// serialized through the actor so the idle sweeper never races a
// concurrent Attach/Detach.
func (e *Engine) StreamCount() int {
	reply := make(chan int, 1)
	e.inbox <- command{kind: cmdStreamCount, replyCount: reply}
	return <-reply
}

// Shutdown flushes any pending write and stops the actor goroutine.
// The Engine must not be used afterward.
func (e *Engine) Shutdown() {
	done := make(chan struct{})
	e.inbox <- command{kind: cmdShutdown, replyDone: done}
	<-done
}

// Snapshot returns a deep copy of the session as it stands this
// instant, serialized through the actor so it never races a concurrent
// WS dispatch. Used by the HTTP read path and as the source record for
// remix.
func (e *Engine) Snapshot(_ context.Context) model.Session {
	reply := make(chan model.Session, 1)
	e.inbox <- command{kind: cmdSnapshot, replySession: reply}
	return <-reply
}

// ReplaceState overwrites the session's sequencer state wholesale, as
// driven by a PUT /api/sessions/:id request. It is rejected with
// ErrImmutable on a published session, mirroring the rejection every
// WS mutating command receives. On success every attached
// stream is sent a fresh snapshot so live viewers pick up the change.
func (e *Engine) ReplaceState(_ context.Context, state model.SessionState) error {
	reply := make(chan error, 1)
	e.inbox <- command{kind: cmdReplaceState, state: &state, replyErr: reply}
	return <-reply
}

// Publish makes the session permanently immutable. A second call
// returns ErrImmutable: the transition is one-way.
func (e *Engine) Publish(_ context.Context) error {
	reply := make(chan error, 1)
	e.inbox <- command{kind: cmdPublish, replyErr: reply}
	return <-reply
}

// IncrementRemixCount bumps the session's remixCount by one, through
// the actor so it can never be lost to a concurrently dispatched WS
// mutation of the same record. Allowed even on a published session:
// remixCount is lineage bookkeeping, not sequencer state.
func (e *Engine) IncrementRemixCount(_ context.Context) error {
	reply := make(chan error, 1)
	e.inbox <- command{kind: cmdIncrementRemix, replyErr: reply}
	return <-reply
}

func (e *Engine) handleAttach(cmd command) {
	e.lastActivity = time.Now()

	if len(e.streams) >= model.MaxStreamsPerSession {
		e.metrics.StreamsRejected.Inc()
		cmd.replyErr <- ErrCapacity
		return
	}

	wasEmpty := len(e.streams) == 0
	now := time.Now().UnixMilli()
	colorIndex, animal, color := model.IdentityFor(cmd.playerID)
	e.players[cmd.playerID] = model.PlayerInfo{
		ID:            cmd.playerID,
		ConnectedAt:   now,
		LastMessageAt: now,
		ColorIndex:    colorIndex,
		Animal:        animal,
		Color:         color,
	}
	e.streams[cmd.playerID] = cmd.stream

	e.metrics.StreamsAttached.Inc()
	e.metrics.ActiveStreams.Inc()
	if wasEmpty {
		e.metrics.ActiveSessions.Inc()
	}

	e.sendStateSync(cmd.stream)
	e.broadcastInformationalExcept(cmd.playerID, proto.BroadcastPlayerJoined, map[string]interface{}{
		"player": e.players[cmd.playerID],
	})

	cmd.replyErr <- nil
}

func (e *Engine) handleDetach(cmd command) {
	e.lastActivity = time.Now()

	stream, ok := e.streams[cmd.playerID]
	if !ok {
		close(cmd.replyDone)
		return
	}
	delete(e.streams, cmd.playerID)
	delete(e.players, cmd.playerID)
	wasPlaying := e.playing[cmd.playerID]
	delete(e.playing, cmd.playerID)
	stream.Close()

	e.metrics.ActiveStreams.Dec()

	e.broadcastInformationalExcept(cmd.playerID, proto.BroadcastPlayerLeft, map[string]interface{}{
		"playerId": cmd.playerID,
		"code":     cmd.code,
		"reason":   cmd.reason,
	})
	if wasPlaying {
		e.broadcastInformationalExcept(cmd.playerID, proto.BroadcastPlaybackStopped, map[string]interface{}{
			"playerId": cmd.playerID,
		})
	}

	if len(e.streams) == 0 {
		e.metrics.ActiveSessions.Dec()
		if err := e.flushLocked(); err != nil {
			e.log.Warn("flush on last detach failed", "error", err)
		}
	}
	close(cmd.replyDone)
}

func (e *Engine) handleFlush(cmd command) {
	err := e.flushLocked()
	cmd.replyErr <- err
	close(cmd.replyDone)
}

// handleReplaceState applies an HTTP-driven full-state overwrite. It
// bypasses the per-command decode and clamping of WS dispatch (the caller
// already ran internal/validate.ValidateSessionState on the decoded
// body) but still flows through broadcastMutation so serverSeq,
// dirty-tracking and the attached-stream fan-out stay consistent with
// every other mutation path.
func (e *Engine) handleReplaceState(cmd command) {
	e.lastActivity = time.Now()
	if e.session.Immutable {
		cmd.replyErr <- ErrImmutable
		return
	}
	e.session.State = *cmd.state
	e.broadcastMutation(proto.BroadcastSessionReplaced, nil, map[string]interface{}{})
	for playerID := range e.streams {
		e.sendSnapshot(playerID)
	}
	cmd.replyErr <- nil
}

// handlePublish flips the one-way immutable flag and tells every
// attached stream so clients can stop offering edit affordances.
func (e *Engine) handlePublish(cmd command) {
	e.lastActivity = time.Now()
	if e.session.Immutable {
		cmd.replyErr <- ErrImmutable
		return
	}
	e.session.Immutable = true
	e.dirty = true
	e.broadcastInformationalAll(proto.BroadcastSessionPublished, map[string]interface{}{
		"immutable": true,
	})
	if err := e.flushLocked(); err != nil {
		e.log.Warn("flush on publish failed", "error", err)
	}
	cmd.replyErr <- nil
}

// handleIncrementRemix bumps remixCount and marks the session dirty
// without touching State, so it carries no serverSeq and no broadcast:
// remix lineage is visible on next read, not pushed to live viewers.
func (e *Engine) handleIncrementRemix(cmd command) {
	e.lastActivity = time.Now()
	e.session.RemixCount++
	e.dirty = true
	if err := e.flushLocked(); err != nil {
		e.log.Warn("flush on remix count increment failed", "error", err)
	}
	cmd.replyErr <- nil
}

// cloneSession returns a value copy of e.session with its slices/maps
// deep-copied via a JSON round trip, so a caller outside the actor
// goroutine can never observe or race a subsequent in-place mutation.
func (e *Engine) cloneSession() model.Session {
	raw, err := json.Marshal(&e.session)
	if err != nil {
		e.log.Error("marshal session for snapshot failed", "error", err)
		return e.session
	}
	var clone model.Session
	if err := json.Unmarshal(raw, &clone); err != nil {
		e.log.Error("unmarshal session for snapshot failed", "error", err)
		return e.session
	}
	return clone
}

func (e *Engine) handleShutdown(cmd command) {
	if err := e.flushLocked(); err != nil {
		e.log.Warn("flush on shutdown failed", "error", err)
	}
	for _, s := range e.streams {
		s.Close()
	}
	close(cmd.replyDone)
}

// flushLocked writes through the session record if dirty. Named for
// the actor-boundary discipline it relies on: it must only ever run
// inside run's single goroutine.
func (e *Engine) flushLocked() error {
	if !e.dirty {
		return nil
	}
	e.session.UpdatedAt = time.Now().UnixMilli()
	// Muted/Soloed are local-only: the saved record carries copies of
	// the tracks with both cleared, so they never reach durable storage.
	record := e.session
	record.State.Tracks = make([]*model.Track, len(e.session.State.Tracks))
	for i, t := range e.session.State.Tracks {
		c := *t
		c.Muted, c.Soloed = false, false
		record.State.Tracks[i] = &c
	}
	start := time.Now()
	err := e.store.Save(context.Background(), &record)
	e.metrics.PersistenceWriteSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.PersistenceWriteFailuresTotal.Inc()
		return err
	}
	e.dirty = false
	return nil
}
