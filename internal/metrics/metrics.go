// Package metrics holds the Prometheus collectors of the tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yard_tracker"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MessagesProcessed prometheus.Counter
	MessagesFailed    prometheus.Counter
	Transitions       *prometheus.CounterVec // label: band
	YardEvents        *prometheus.CounterVec // label: kind (enter|leave|unknown)

	TransportGenerated prometheus.Counter
	TransportDelivered prometheus.Counter
	TransportLost      prometheus.Counter
	TransportDelayed   prometheus.Counter
	TransportCorrupted prometheus.Counter

	QueueDepth prometheus.Gauge
	SinkErrors *prometheus.CounterVec // label: sink
}

// New registers all collectors on a private registry.
func New() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	m := &Metrics{
		registry:          prometheus.NewRegistry(),
		MessagesProcessed: counter("messages_processed_total", "Reports handed to the update engine."),
		MessagesFailed:    counter("messages_failed_total", "Reports skipped because of a processing fault."),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "band_transitions_total", Help: "Yard progress band transitions by new band.",
		}, []string{"band"}),
		YardEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "yard_membership_events_total", Help: "Machine yard enter/leave/unknown notes.",
		}, []string{"kind"}),
		TransportGenerated: counter("transport_generated_total", "Reports offered to the simulated link."),
		TransportDelivered: counter("transport_delivered_total", "Reports delivered by the simulated link."),
		TransportLost:      counter("transport_lost_total", "Reports dropped by the simulated link."),
		TransportDelayed:   counter("transport_delayed_total", "Reports delayed above the threshold."),
		TransportCorrupted: counter("transport_corrupted_total", "Reports delivered with corrupted coordinates."),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_depth", Help: "Frames waiting on the ingestion channel.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sink_errors_total", Help: "Transition events a sink failed to publish.",
		}, []string{"sink"}),
	}
	m.registry.MustRegister(
		m.MessagesProcessed, m.MessagesFailed, m.Transitions, m.YardEvents,
		m.TransportGenerated, m.TransportDelivered, m.TransportLost, m.TransportDelayed, m.TransportCorrupted,
		m.QueueDepth, m.SinkErrors,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// The helpers below tolerate a nil receiver so callers need no guards.

func (m *Metrics) Processed(failed bool) {
	if m == nil {
		return
	}
	m.MessagesProcessed.Inc()
	if failed {
		m.MessagesFailed.Inc()
	}
}

func (m *Metrics) Transition(band string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(band).Inc()
}

func (m *Metrics) YardEvent(kind string) {
	if m == nil {
		return
	}
	m.YardEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) Transport(generated, delivered, lost, delayed, corrupted bool) {
	if m == nil {
		return
	}
	inc := func(c prometheus.Counter, ok bool) {
		if ok {
			c.Inc()
		}
	}
	inc(m.TransportGenerated, generated)
	inc(m.TransportDelivered, delivered)
	inc(m.TransportLost, lost)
	inc(m.TransportDelayed, delayed)
	inc(m.TransportCorrupted, corrupted)
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}
