package transport

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments a beacon queue. Optional; a nil Metrics in the
// queue Config disables instrumentation.
type Metrics struct {
	Sent        prometheus.Counter
	Failed      prometheus.Counter
	QueueLength prometheus.Gauge
	RTT         prometheus.Histogram
}

// NewMetrics builds and registers the transport collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "viewtrace_beacon_events_sent_total",
			Help: "Number of beacon events delivered to the collector",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "viewtrace_beacon_send_failures_total",
			Help: "Number of failed beacon POSTs",
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "viewtrace_beacon_queue_length",
			Help: "Events currently queued for delivery",
		}),
		RTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewtrace_beacon_rtt_seconds",
			Help:    "Round-trip time of successful beacon POSTs",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Sent, m.Failed, m.QueueLength, m.RTT)
	}
	return m
}
