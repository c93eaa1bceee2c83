package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for event-stream connections.
type WebSocketMetrics struct {
	ActiveConnections   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	RejectedConnections *prometheus.CounterVec
	FramesWritten       prometheus.Counter
	SessionEnds         *prometheus.CounterVec
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket connections.",
		}),
		RejectedConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_connections_total",
			Help:      "WebSocket connections rejected before upgrade, by reason.",
		}, []string{"reason"}),
		FramesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "frames_written_total",
			Help:      "Total number of event frames written to clients.",
		}),
		SessionEnds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "session_ends_total",
			Help:      "Ended WebSocket sessions by cause.",
		}, []string{"cause"}),
	}

	reg.MustRegister(m.ActiveConnections, m.ConnectionsTotal, m.RejectedConnections, m.FramesWritten, m.SessionEnds)
	return m
}

func (m *WebSocketMetrics) Connected() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ActiveConnections.Inc()
}

func (m *WebSocketMetrics) Disconnected(cause string) {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
	m.SessionEnds.WithLabelValues(cause).Inc()
}

func (m *WebSocketMetrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.RejectedConnections.WithLabelValues(reason).Inc()
}

func (m *WebSocketMetrics) FrameWritten() {
	if m == nil {
		return
	}
	m.FramesWritten.Inc()
}
