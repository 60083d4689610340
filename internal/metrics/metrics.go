// Package metrics holds the client's prometheus collectors. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voice_client"

type Metrics struct {
	reg *prometheus.Registry

	requests   *prometheus.CounterVec
	reconnects prometheus.Counter
	consumers  prometheus.Gauge
	events     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "requests_total",
			Help:      "Signaling requests sent to the relay by method and result.",
		}, []string{"method", "result"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "reconnects_total",
			Help:      "Successful signaling reconnections.",
		}),
		consumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumers",
			Help:      "Consumers currently held by the room.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "room",
			Name:      "events_total",
			Help:      "Room events emitted by kind.",
		}, []string{"kind"}),
	}
	m.reg.MustRegister(m.requests, m.reconnects, m.consumers, m.events)
	m.reg.MustRegister(prometheus.NewGoCollector())
	return m
}

// Request results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

func (m *Metrics) Request(method, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, result).Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) SetConsumers(n int) {
	if m == nil {
		return
	}
	m.consumers.Set(float64(n))
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
