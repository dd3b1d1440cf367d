package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the ingestion-side Prometheus counters.
type Metrics struct {
	EventsIngested  *prometheus.CounterVec
	UnmappedDevices prometheus.Counter
	InvalidPayloads prometheus.Counter
	Heartbeats      prometheus.Counter
}

// NewMetrics registers the ingestion counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensor_events_ingested_total",
			Help: "Sensor payloads applied to a store's aggregates.",
		}, []string{"store_id"}),
		UnmappedDevices: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensor_unmapped_events_total",
			Help: "Payloads from serial numbers absent from the device mapping.",
		}),
		InvalidPayloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensor_invalid_payloads_total",
			Help: "Payloads that could not be decoded at all.",
		}),
		Heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensor_heartbeats_total",
			Help: "Heartbeat messages received.",
		}),
	}
}
