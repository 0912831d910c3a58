// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics holds stepseqd's Prometheus instrumentation:
// connection counts, message throughput, and persistence latency for
// the session engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stepseq"

// SessionMetrics holds the counters, gauges and histograms the
// session engine (C5) and router (C7) update. Construct once with
// NewSessionMetrics and share across all sessions.
type SessionMetrics struct {
	// StreamsAttached counts successful stream attaches.
	StreamsAttached prometheus.Counter
	// StreamsRejected counts attaches rejected for capacity.
	StreamsRejected prometheus.Counter
	// ActiveStreams tracks currently attached streams across all sessions.
	ActiveStreams prometheus.Gauge
	// ActiveSessions tracks sessions with at least one attached stream.
	ActiveSessions prometheus.Gauge

	// MessagesInboundTotal counts inbound frames by type.
	MessagesInboundTotal *prometheus.CounterVec
	// BroadcastsTotal counts outbound broadcasts by type.
	BroadcastsTotal *prometheus.CounterVec
	// MutationsRejectedTotal counts rejected mutations by reason
	// (immutable, capacity, validation, rate_limited).
	MutationsRejectedTotal *prometheus.CounterVec

	// PersistenceWriteSeconds measures durable store write latency.
	PersistenceWriteSeconds prometheus.Histogram
	// PersistenceWriteFailuresTotal counts durable write failures.
	PersistenceWriteFailuresTotal prometheus.Counter

	// SessionsEvictedTotal counts idle-session evictions.
	SessionsEvictedTotal prometheus.Counter
}

// NewSessionMetrics registers stepseqd's metrics against the default
// Prometheus registry. Calling it twice panics (promauto semantics);
// call once at startup.
func NewSessionMetrics() *SessionMetrics {
	return NewSessionMetricsWith(prometheus.DefaultRegisterer)
}

// NewSessionMetricsWith registers against reg instead of the default
// registry, so tests can use an isolated prometheus.NewRegistry() and
// construct multiple instances without colliding.
func NewSessionMetricsWith(reg prometheus.Registerer) *SessionMetrics {
	factory := promauto.With(reg)
	return &SessionMetrics{
		StreamsAttached: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_attached_total",
			Help:      "Total streams successfully attached to a session.",
		}),
		StreamsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_rejected_total",
			Help:      "Total stream attaches rejected for exceeding the per-session connection cap.",
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Currently attached streams across all sessions.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions with at least one attached stream.",
		}),
		MessagesInboundTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_inbound_total",
			Help:      "Inbound client messages by type.",
		}, []string{"type"}),
		BroadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Outbound broadcasts by type.",
		}, []string{"type"}),
		MutationsRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_rejected_total",
			Help:      "Mutating commands rejected, by reason.",
		}, []string{"reason"}),
		PersistenceWriteSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persistence_write_seconds",
			Help:      "Durable store write latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PersistenceWriteFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_write_failures_total",
			Help:      "Durable store write failures.",
		}),
		SessionsEvictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions evicted from memory after an idle period.",
		}),
	}
}
