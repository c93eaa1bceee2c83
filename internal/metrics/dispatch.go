package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UnknownCommandLabel replaces unregistered command names so clients cannot
// grow label cardinality.
const UnknownCommandLabel = "unknown"

// DispatchMetrics tracks command dispatch outcomes.
type DispatchMetrics struct {
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "commands_total",
			Help:      "Total number of dispatched commands by command and outcome.",
		}, []string{"command", "outcome"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "command_duration_seconds",
			Help:      "Duration of command handlers in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
	}

	reg.MustRegister(m.CommandsTotal, m.CommandDuration)
	return m
}

// Observe records one dispatch. outcome is "success" or an error type.
func (m *DispatchMetrics) Observe(command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}
