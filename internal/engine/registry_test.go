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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/stepseq/internal/logging"
	"github.com/aleutian-labs/stepseq/internal/metrics"
	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/aleutian-labs/stepseq/internal/store/memstore"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st := memstore.New()
	m := metrics.NewSessionMetricsWith(prometheus.NewRegistry())
	log := logging.Default()
	r := NewRegistry(st, m, log)
	t.Cleanup(r.Shutdown)
	return r
}

func TestRegistryGetMissingSessionReturnsNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryGetRevivesFromStoreAndCachesLiveEngine(t *testing.T) {
	st := memstore.New()
	m := metrics.NewSessionMetricsWith(prometheus.NewRegistry())
	log := logging.Default()
	r := NewRegistry(st, m, log)
	t.Cleanup(r.Shutdown)

	sess := &model.Session{ID: "sess-revive", State: model.NewDefaultSessionState()}
	require.NoError(t, st.Save(context.Background(), sess))

	e1, err := r.Get(context.Background(), "sess-revive")
	require.NoError(t, err)
	e2, err := r.Get(context.Background(), "sess-revive")
	require.NoError(t, err)
	assert.Same(t, e1, e2)
}

func TestRegistryTrackRegistersACallerConstructedEngine(t *testing.T) {
	r := newTestRegistry(t)
	st := memstore.New()
	m := metrics.NewSessionMetricsWith(prometheus.NewRegistry())
	log := logging.Default()
	sess := &model.Session{ID: "sess-created", State: model.NewDefaultSessionState()}
	e := New(sess, st, m, log)

	r.Track(e)
	got, err := r.Get(context.Background(), "sess-created")
	require.NoError(t, err)
	assert.Same(t, e, got)
}

func TestRegistryEvictShutsDownAndForgetsTheEngine(t *testing.T) {
	r := newTestRegistry(t)
	st := memstore.New()
	m := metrics.NewSessionMetricsWith(prometheus.NewRegistry())
	log := logging.Default()
	sess := &model.Session{ID: "sess-evict", State: model.NewDefaultSessionState()}
	e := New(sess, st, m, log)
	r.Track(e)

	r.Evict("sess-evict")

	// The engine backing this id is gone; Get must revive a fresh one
	// from the (empty) store rather than returning the evicted engine,
	// so it should fail since nothing was ever persisted.
	_, err := r.Get(context.Background(), "sess-evict")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSchedulerSweepsIdleEnginesAfterInterval(t *testing.T) {
	st := memstore.New()
	m := metrics.NewSessionMetricsWith(prometheus.NewRegistry())
	log := logging.Default()
	r := NewRegistry(st, m, log)
	t.Cleanup(r.Shutdown)

	sess := &model.Session{ID: "sess-idle", State: model.NewDefaultSessionState()}
	require.NoError(t, st.Save(context.Background(), sess))
	original, err := r.Get(context.Background(), "sess-idle")
	require.NoError(t, err)

	sched := NewScheduler(r, 10*time.Millisecond, 20*time.Millisecond, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, sched.Start(ctx))
	t.Cleanup(sched.Stop)

	// Once the sweep evicts the idle engine, a subsequent Get revives a
	// new instance from the store rather than returning the original.
	require.Eventually(t, func() bool {
		revived, err := r.Get(context.Background(), "sess-idle")
		return err == nil && revived != original
	}, time.Second, 5*time.Millisecond)
}

func TestSweepIdleSkipsEnginesWithAttachedStreams(t *testing.T) {
	r := newTestRegistry(t)
	st := memstore.New()
	m := metrics.NewSessionMetricsWith(prometheus.NewRegistry())
	log := logging.Default()
	sess := &model.Session{ID: "sess-silent-viewer", State: model.NewDefaultSessionState()}
	e := New(sess, st, m, log)
	r.Track(e)

	s := NewStream("viewer")
	require.NoError(t, e.Attach("viewer", s))

	evicted := r.SweepIdle(0)
	assert.Equal(t, 0, evicted)

	got, err := r.Get(context.Background(), "sess-silent-viewer")
	require.NoError(t, err)
	assert.Same(t, e, got)
}
