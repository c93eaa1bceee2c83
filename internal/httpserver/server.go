package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
)

// Dispatcher runs a named command and always produces an envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.Request) domain.Response
}

type Server struct {
	echo  *echo.Echo
	addr  string
	clock clockwork.Clock

	dispatcher   Dispatcher
	eventStream  echo.HandlerFunc
	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time
}

// Options carries the optional collaborators of the server.
type Options struct {
	Registry     *prometheus.Registry
	HTTPMetrics  *metrics.HTTPMetrics
	HealthChecks []HealthCheck
	Clock        clockwork.Clock
}

func NewServer(addr string, dispatcher Dispatcher, eventStream echo.HandlerFunc, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:         e,
		addr:         addr,
		clock:        clock,
		dispatcher:   dispatcher,
		eventStream:  eventStream,
		registry:     opts.Registry,
		httpMetrics:  opts.HTTPMetrics,
		healthChecks: opts.HealthChecks,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
