package metrics

import "github.com/prometheus/client_golang/prometheus"

// WatcherMetrics tracks project watchers and the changes they report.
type WatcherMetrics struct {
	ActiveWatchers prometheus.Gauge
	StartFailures  prometheus.Counter
	ChangesTotal   *prometheus.CounterVec
}

func NewWatcherMetrics(reg prometheus.Registerer) *WatcherMetrics {
	m := &WatcherMetrics{
		ActiveWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "active",
			Help:      "Number of running project watchers.",
		}),
		StartFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "start_failures_total",
			Help:      "Total number of watchers that failed to start.",
		}),
		ChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "changes_total",
			Help:      "Total number of project changes by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.ActiveWatchers, m.StartFailures, m.ChangesTotal)
	return m
}

func (m *WatcherMetrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.ActiveWatchers.Set(float64(n))
}

func (m *WatcherMetrics) StartFailed() {
	if m == nil {
		return
	}
	m.StartFailures.Inc()
}

func (m *WatcherMetrics) Change(kind string) {
	if m == nil {
		return
	}
	m.ChangesTotal.WithLabelValues(kind).Inc()
}
