package collector

import (
	client_prometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/viewtrace/viewtrace/internal"
)

var (
	BeaconsReceivedMetric = promauto.NewCounter(client_prometheus.CounterOpts{
		Name: "collector_beacons_received_total",
		Help: "The total number of beacon batches accepted",
	})

	BeaconsRejectedMetric = promauto.NewCounterVec(client_prometheus.CounterOpts{
		Name: "collector_beacons_rejected_total",
		Help: "The total number of beacon batches rejected",
	}, []string{"reason"})

	EventsReceivedMetric = promauto.NewCounterVec(client_prometheus.CounterOpts{
		Name: "collector_events_received_total",
		Help: "The total number of view events accepted",
	}, []string{"type"})

	BeaconEventsMetric = promauto.NewHistogram(client_prometheus.HistogramOpts{
		Name:    "collector_beacon_events",
		Help:    "Events per accepted beacon batch",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	LiveViewersMetric = client_prometheus.NewGauge(client_prometheus.GaugeOpts{
		Name: "collector_live_viewers",
		Help: "Views with a beacon inside the live-viewer window",
	})

	HealthMetric = client_prometheus.NewGauge(client_prometheus.GaugeOpts{
		Name: "collector_health_status",
		Help: "Health status of the collector (1 = healthy, 0 = unhealthy)",
	})

	ReadyMetric = client_prometheus.NewGauge(client_prometheus.GaugeOpts{
		Name: "collector_ready_status",
		Help: "Ready status of the collector (1 = ready, 0 = not ready)",
	})

	VersionMetric = client_prometheus.NewGaugeVec(client_prometheus.GaugeOpts{
		Name: "collector_version_info",
		Help: "Version information of the collector",
	}, []string{"version"})

	StorageInfoMetric = client_prometheus.NewGaugeVec(client_prometheus.GaugeOpts{
		Name: "collector_storage_info",
		Help: "Configured storage backend",
	}, []string{"storage"})
)

// InitMetrics registers the hand-built gauges and sets version info.
func InitMetrics() {
	client_prometheus.MustRegister(LiveViewersMetric)
	client_prometheus.MustRegister(HealthMetric)
	client_prometheus.MustRegister(ReadyMetric)
	client_prometheus.MustRegister(VersionMetric)
	client_prometheus.MustRegister(StorageInfoMetric)
	VersionMetric.WithLabelValues(internal.CollectorVersionRevision).Set(1)
}

// SetStorageInfo records which storage backend the collector runs on.
func SetStorageInfo(storage string) {
	StorageInfoMetric.WithLabelValues(storage).Set(1)
}
