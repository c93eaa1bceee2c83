package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics tracks event fan-out.
type HubMetrics struct {
	Subscribers       prometheus.Gauge
	EventsSent        prometheus.Counter
	Deliveries        prometheus.Counter
	SkippedDeliveries prometheus.Counter
}

func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of registered event subscribers.",
		}),
		EventsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_sent_total",
			Help:      "Total number of events handed to the hub.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "deliveries_total",
			Help:      "Total number of per-subscriber event deliveries.",
		}),
		SkippedDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "skipped_deliveries_total",
			Help:      "Deliveries skipped because the subscriber queue was closed.",
		}),
	}

	reg.MustRegister(m.Subscribers, m.EventsSent, m.Deliveries, m.SkippedDeliveries)
	return m
}

func (m *HubMetrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

// ObserveSend records one Send call and its per-subscriber results.
func (m *HubMetrics) ObserveSend(delivered, skipped int) {
	if m == nil {
		return
	}
	m.EventsSent.Inc()
	m.Deliveries.Add(float64(delivered))
	m.SkippedDeliveries.Add(float64(skipped))
}
