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
	"context"
	"sync"
	"time"

	"github.com/aleutian-labs/stepseq/internal/logging"
	"github.com/aleutian-labs/stepseq/internal/metrics"
	"github.com/aleutian-labs/stepseq/internal/store"
	"github.com/aleutian-labs/stepseq/internal/validate"
)

// ErrNotFound is store.ErrNotFound, re-exported so callers that only
// import engine can check Get's not-found case with errors.Is.
var ErrNotFound = store.ErrNotFound

// Registry is the hibernation boundary: it holds at most
// one live Engine per session id, reviving from durable storage on
// first touch and evicting idle engines back out of memory.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine

	store   store.Store
	metrics *metrics.SessionMetrics
	log     *logging.Logger
}

// NewRegistry constructs an empty registry backed by st.
func NewRegistry(st store.Store, m *metrics.SessionMetrics, log *logging.Logger) *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
		store:   st,
		metrics: m,
		log:     log,
	}
}

// Get returns the live engine for id, reviving it from durable
// storage if it isn't already in memory. Returns store.ErrNotFound if
// no session record exists under id.
func (r *Registry) Get(ctx context.Context, id string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[id]; ok {
		return e, nil
	}

	sess, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if repair := validate.RepairStateInvariants(&sess.State); len(repair.Repairs) > 0 {
		r.log.Warn("repaired session invariants on revive", "session_id", id, "repairs", repair.Repairs)
	}

	e := New(sess, r.store, r.metrics, r.log)
	r.engines[id] = e
	return e, nil
}

// Track registers an already-constructed engine (used right after a
// session is created via the HTTP API, so the creating request's
// engine is reused rather than reloaded from storage).
func (r *Registry) Track(e *Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.ID()] = e
}

// Evict shuts down and removes id's live engine, if any. Safe to call
// for an id with no live engine.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	e, ok := r.engines[id]
	if ok {
		delete(r.engines, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	e.Shutdown()
	r.metrics.SessionsEvictedTotal.Inc()
}

// SweepIdle evicts every live engine that has been idle at least
// threshold AND has zero attached streams, returning how many were
// evicted. A connected-but-silent viewer (watching a jam without
// sending anything) keeps its engine alive regardless of idle time:
// eviction only applies to sessions nobody is still watching.
func (r *Registry) SweepIdle(threshold time.Duration) int {
	r.mu.Lock()
	candidates := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		candidates = append(candidates, e)
	}
	r.mu.Unlock()

	evicted := 0
	for _, e := range candidates {
		if e.StreamCount() > 0 {
			continue
		}
		if e.IdleDuration() >= threshold {
			r.Evict(e.ID())
			evicted++
		}
	}
	return evicted
}

// Shutdown flushes and stops every live engine. Intended for process
// shutdown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Evict(id)
	}
}
