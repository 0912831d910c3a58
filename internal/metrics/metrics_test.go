// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *SessionMetrics {
	t.Helper()
	return NewSessionMetricsWith(prometheus.NewRegistry())
}

func TestStreamsAttachedIncrements(t *testing.T) {
	m := newTestMetrics(t)
	m.StreamsAttached.Inc()
	m.StreamsAttached.Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.StreamsAttached))
}

func TestMessagesInboundTotalLabelsByType(t *testing.T) {
	m := newTestMetrics(t)
	m.MessagesInboundTotal.WithLabelValues("toggle_step").Inc()
	m.MessagesInboundTotal.WithLabelValues("toggle_step").Inc()
	m.MessagesInboundTotal.WithLabelValues("set_tempo").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.MessagesInboundTotal.WithLabelValues("toggle_step")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesInboundTotal.WithLabelValues("set_tempo")))
}

func TestTwoInstancesOnSeparateRegistriesDoNotCollide(t *testing.T) {
	m1 := newTestMetrics(t)
	m2 := newTestMetrics(t)
	m1.ActiveSessions.Set(3)
	m2.ActiveSessions.Set(7)
	assert.Equal(t, float64(3), testutil.ToFloat64(m1.ActiveSessions))
	assert.Equal(t, float64(7), testutil.ToFloat64(m2.ActiveSessions))
}

func TestNewSessionMetricsPanicsOnDoubleRegistrationSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { NewSessionMetricsWith(reg) })
	assert.Panics(t, func() { NewSessionMetricsWith(reg) })
}
