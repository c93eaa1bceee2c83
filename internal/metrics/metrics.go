// Package metrics defines the Prometheus collectors of the gateway. Every
// collector set is registered on an injected registry, and every recording
// method is safe to call on a nil receiver so components can run unmetered
// in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "but_server"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Set bundles all collector sets so cmd/server can build them in one call.
type Set struct {
	HTTP      *HTTPMetrics
	Dispatch  *DispatchMetrics
	Hub       *HubMetrics
	WebSocket *WebSocketMetrics
	Watcher   *WatcherMetrics
	Database  *DatabaseMetrics
}

// NewSet creates and registers every collector set on reg.
func NewSet(reg prometheus.Registerer) *Set {
	return &Set{
		HTTP:      NewHTTPMetrics(reg),
		Dispatch:  NewDispatchMetrics(reg),
		Hub:       NewHubMetrics(reg),
		WebSocket: NewWebSocketMetrics(reg),
		Watcher:   NewWatcherMetrics(reg),
		Database:  NewDatabaseMetrics(reg),
	}
}
