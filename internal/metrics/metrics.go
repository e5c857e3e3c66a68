package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airquality_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	StoreRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airquality_store_records",
			Help: "Current number of measurements held in memory",
		},
	)

	SnapshotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_snapshot_loads_total",
			Help: "Snapshot loads by format and result",
		},
		[]string{"format", "result"},
	)

	MQTTMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_mqtt_messages_total",
			Help: "MQTT measurement messages by result",
		},
		[]string{"result"}, // "stored", "invalid"
	)
)

func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func SetStoreRecords(n int) {
	StoreRecords.Set(float64(n))
}

func RecordSnapshotLoad(format string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SnapshotLoads.WithLabelValues(format, result).Inc()
}

func RecordMQTTMessage(stored bool) {
	if stored {
		MQTTMessages.WithLabelValues("stored").Inc()
		return
	}
	MQTTMessages.WithLabelValues("invalid").Inc()
}
