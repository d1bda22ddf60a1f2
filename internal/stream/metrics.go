package stream

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rileyhilliard/sensord/internal/metrics"
)

// Metrics holds the processor's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	samples   prometheus.Counter
	anomalies *prometheus.CounterVec
	sensors   prometheus.Gauge
}

// NewMetrics creates and registers processor metrics, or returns nil when
// reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	return &Metrics{
		samples: metrics.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "stream",
			Name:      "samples_ingested_total",
			Help:      "Sensor readings appended to history",
		})),
		anomalies: metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "stream",
			Name:      "anomalies_total",
			Help:      "Anomalies flagged, by metric and severity",
		}, []string{"metric", "severity"})),
		sensors: metrics.Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "stream",
			Name:      "sensors_tracked",
			Help:      "Sensors with retained history",
		})),
	}
}

func (m *Metrics) ingested(n, sensors int) {
	if m == nil {
		return
	}
	m.samples.Add(float64(n))
	m.sensors.Set(float64(sensors))
}

func (m *Metrics) anomaly(a Anomaly) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(string(a.Metric), string(a.Severity)).Inc()
}

func (m *Metrics) tracked(sensors int) {
	if m == nil {
		return
	}
	m.sensors.Set(float64(sensors))
}
