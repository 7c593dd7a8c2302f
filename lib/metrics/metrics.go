// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hl7ingest"

// Rejection reasons used as the "reason" label.
const (
	ReasonParse = "parse"
	ReasonStore = "store"
)

// Metrics holds every collector the receiver updates.
type Metrics struct {
	registry *prometheus.Registry

	MessagesAccepted  prometheus.Counter
	MessagesRejected  *prometheus.CounterVec
	RepliesFailed     prometheus.Counter
	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	StoredRecords     prometheus.Gauge
	Evictions         prometheus.Counter
	RecordsEvicted    prometheus.Counter
	EvictionFailures  prometheus.Counter
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MessagesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "accepted_total",
			Help:      "Messages persisted and acknowledged with AA.",
		}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "rejected_total",
			Help:      "Messages answered with AE, by failure stage.",
		}, []string{"reason"}),
		RepliesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "reply_failures_total",
			Help:      "Acknowledgments that could not be written to the connection.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "accepted_total",
			Help:      "TCP connections accepted.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "TCP connections currently open.",
		}),
		StoredRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records",
			Help:      "Records in the message directory after the last write or eviction.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "evictions_total",
			Help:      "Eviction sweeps run.",
		}),
		RecordsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records_evicted_total",
			Help:      "Records deleted by eviction.",
		}),
		EvictionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "eviction_failures_total",
			Help:      "Records eviction tried and failed to delete.",
		}),
	}

	m.registry.MustRegister(
		m.MessagesAccepted,
		m.MessagesRejected,
		m.RepliesFailed,
		m.ConnectionsTotal,
		m.ConnectionsActive,
		m.StoredRecords,
		m.Evictions,
		m.RecordsEvicted,
		m.EvictionFailures,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MessageAccepted counts an acknowledged message.
func (m *Metrics) MessageAccepted() {
	if m == nil {
		return
	}
	m.MessagesAccepted.Inc()
}

// MessageRejected counts a negative acknowledgment.
func (m *Metrics) MessageRejected(reason string) {
	if m == nil {
		return
	}
	m.MessagesRejected.WithLabelValues(reason).Inc()
}

// ReplyFailed counts a reply write failure.
func (m *Metrics) ReplyFailed() {
	if m == nil {
		return
	}
	m.RepliesFailed.Inc()
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// ConnectionClosed records a connection teardown.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

// SetStoredRecords publishes the current store size.
func (m *Metrics) SetStoredRecords(count int) {
	if m == nil {
		return
	}
	m.StoredRecords.Set(float64(count))
}

// Evicted records one eviction sweep.
func (m *Metrics) Evicted(removed, failed int) {
	if m == nil {
		return
	}
	m.Evictions.Inc()
	m.RecordsEvicted.Add(float64(removed))
	m.EvictionFailures.Add(float64(failed))
}
