package ssdp

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the responder's Prometheus instrumentation. Grounded on
// the Collector pattern used for BFD session metrics in the wider
// example pack, pared down to the counters/gauge this responder's event
// loop can actually produce.
type Metrics struct {
	NotifySent     *prometheus.CounterVec
	ResponseSent   *prometheus.CounterVec
	Dropped        prometheus.Counter
	SendErrors     *prometheus.CounterVec
	InterfaceCount prometheus.Gauge
}

const (
	namespace = "ssdpd"
	subsystem = "ssdp"
)

// NewMetrics creates and registers the responder's metrics against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		NotifySent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notify_total",
			Help:      "Total NOTIFY messages sent, labeled by search target.",
		}, []string{"search_target"}),

		ResponseSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "response_total",
			Help:      "Total M-SEARCH responses sent, labeled by search target.",
		}, []string{"search_target"}),

		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dropped_total",
			Help:      "Total inbound datagrams dropped (malformed or unmatched search target).",
		}),

		SendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_errors_total",
			Help:      "Total send failures, labeled by interface.",
		}, []string{"iface"}),

		InterfaceCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "interfaces",
			Help:      "Current number of admitted interface records.",
		}),
	}

	reg.MustRegister(m.NotifySent, m.ResponseSent, m.Dropped, m.SendErrors, m.InterfaceCount)
	return m
}
