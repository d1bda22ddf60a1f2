package transport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rileyhilliard/sensord/internal/metrics"
)

// Metrics holds the transport's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	framesReceived *prometheus.CounterVec
	bytesReceived  prometheus.Counter
	framesDropped  *prometheus.CounterVec
	eventsDropped  prometheus.Counter
	reconnects     prometheus.Counter
	connected      prometheus.Gauge
}

// NewMetrics creates and registers transport metrics. It returns nil when reg
// is nil so callers can pass an optional registry straight through.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	return &Metrics{
		framesReceived: metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "transport",
			Name:      "frames_received_total",
			Help:      "Frames received from the backend, by message type",
		}, []string{"type"})),
		bytesReceived: metrics.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "transport",
			Name:      "bytes_received_total",
			Help:      "Bytes received from the backend including headers",
		})),
		framesDropped: metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "transport",
			Name:      "frames_dropped_total",
			Help:      "Frames discarded because they could not be decoded",
			// reason: malformed, oversize
		}, []string{"reason"})),
		eventsDropped: metrics.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "transport",
			Name:      "events_dropped_total",
			Help:      "Data events dropped because the consumer fell behind",
		})),
		reconnects: metrics.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "transport",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts after a lost or failed connection",
		})),
		connected: metrics.Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "transport",
			Name:      "connected",
			Help:      "1 while a backend connection is established",
		})),
	}
}

func (m *Metrics) frameReceived(kind string, n int) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
	m.bytesReceived.Add(float64(n))
}

func (m *Metrics) frameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) eventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) reconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
