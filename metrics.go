package mq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors a Client reports to when attached
// via WithMetrics. A nil *Metrics (the default) disables reporting entirely.
type Metrics struct {
	PacketsSent     *prometheus.CounterVec
	PacketsReceived *prometheus.CounterVec
	BytesSent       prometheus.Counter
	BytesReceived   prometheus.Counter
	Reconnects      prometheus.Counter
	Connected       prometheus.Gauge
	InFlight        prometheus.Gauge
}

// NewMetrics registers a fresh set of collectors with reg (use
// prometheus.DefaultRegisterer to expose them on the usual /metrics
// endpoint) and returns a Metrics ready to pass to WithMetrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PacketsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_client_packets_sent_total",
			Help: "Total number of MQTT control packets sent, by type.",
		}, []string{"type"}),
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_client_packets_received_total",
			Help: "Total number of MQTT control packets received, by type.",
		}, []string{"type"}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_bytes_sent_total",
			Help: "Total bytes written to the connection.",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_bytes_received_total",
			Help: "Total bytes read from the connection.",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_reconnects_total",
			Help: "Total number of reconnect attempts made after connection loss.",
		}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_client_connected",
			Help: "1 if the client currently holds a live connection, 0 otherwise.",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_client_inflight_publishes",
			Help: "Number of QoS 1/2 publishes awaiting acknowledgment.",
		}),
	}
}
