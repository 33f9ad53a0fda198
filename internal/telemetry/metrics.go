// Package telemetry exposes Prometheus counters for the session lifecycle,
// adapted from _examples/adred-codev-ws_poc/src/metrics.go. Unlike the
// teacher (one process-wide global registry for its own server), each
// relayx-go Client gets its own registry so multiple sessions in one
// process don't clash on metric identity — spec.md §9 explicitly calls out
// "a single process may host multiple sessions with distinct credentials
// without cross-talk", which this carries into the metrics surface too.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters/gauges for one Client session.
type Metrics struct {
	Registry *prometheus.Registry

	PublishesTotal      *prometheus.CounterVec
	OfflineBuffered      prometheus.Counter
	MessagesResentTotal  prometheus.Counter
	MessagesReceivedTotal *prometheus.CounterVec
	LoopbackSuppressed   prometheus.Counter
	ReconnectsTotal      prometheus.Counter
	ConsumersActive      prometheus.Gauge
	DiagnosticsTotal     *prometheus.CounterVec
}

// New builds and registers a fresh metrics set on its own registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		PublishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Total publish attempts by outcome (sent, buffered, failed).",
		}, []string{"outcome"}),
		OfflineBuffered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offline_buffered_total",
			Help:      "Total publishes appended to the offline buffer.",
		}),
		MessagesResentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_resent_total",
			Help:      "Total offline-buffered messages replayed on reconnect.",
		}),
		MessagesReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total messages delivered to a registered consumer, by topic.",
		}, []string{"topic"}),
		LoopbackSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loopback_suppressed_total",
			Help:      "Total messages discarded because client_id matched this session.",
		}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total successful reconnections.",
		}),
		ConsumersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumers_active",
			Help:      "Current number of live consumers.",
		}),
		DiagnosticsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Total classified server diagnostics, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.PublishesTotal,
		m.OfflineBuffered,
		m.MessagesResentTotal,
		m.MessagesReceivedTotal,
		m.LoopbackSuppressed,
		m.ReconnectsTotal,
		m.ConsumersActive,
		m.DiagnosticsTotal,
	)

	return m
}
