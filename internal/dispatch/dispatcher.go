// Package dispatch routes named commands to their handlers and wraps every
// outcome in a success or error envelope.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/jonboulle/clockwork"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
	apperrors "github.com/crabnebula-dev/gitbutler/internal/platform/errors"
)

// Dispatcher owns the command table. Handlers are registered at startup;
// the table is read-only once Dispatch is called.
type Dispatcher[C any] struct {
	app      C
	handlers map[string]HandlerFunc[C]
	metrics  *metrics.DispatchMetrics
	clock    clockwork.Clock
}

// New creates a dispatcher whose handlers receive app. m may be nil.
func New[C any](app C, m *metrics.DispatchMetrics) *Dispatcher[C] {
	return &Dispatcher[C]{
		app:      app,
		handlers: make(map[string]HandlerFunc[C]),
		metrics:  m,
		clock:    clockwork.NewRealClock(),
	}
}

// Register adds a handler. Registering the same name twice is an error.
func (d *Dispatcher[C]) Register(name string, h HandlerFunc[C]) error {
	if name == "" {
		return fmt.Errorf("register command: empty name")
	}
	if h == nil {
		return fmt.Errorf("register command %s: nil handler", name)
	}
	if _, exists := d.handlers[name]; exists {
		return fmt.Errorf("register command %s: already registered", name)
	}
	d.handlers[name] = h
	return nil
}

// RegisterAll registers every entry of table in name order.
func (d *Dispatcher[C]) RegisterAll(table map[string]HandlerFunc[C]) error {
	for _, name := range slices.Sorted(maps.Keys(table)) {
		if err := d.Register(name, table[name]); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the registered command names, sorted.
func (d *Dispatcher[C]) Names() []string {
	return slices.Sorted(maps.Keys(d.handlers))
}

// Dispatch runs the named command and always returns an envelope.
func (d *Dispatcher[C]) Dispatch(ctx context.Context, req domain.Request) domain.Response {
	start := d.clock.Now()

	h, ok := d.handlers[req.Command]
	if !ok {
		err := apperrors.UnknownCommand(req.Command)
		d.metrics.Observe(metrics.UnknownCommandLabel, string(err.Type), d.clock.Since(start))
		slog.WarnContext(ctx, "Unknown command", "command", req.Command)
		return domain.Failure(err.Message)
	}

	result, err := d.invoke(ctx, req.Command, h, req.Params)
	elapsed := d.clock.Since(start)

	if err != nil {
		serr := apperrors.AsStructuredError(err)
		d.metrics.Observe(req.Command, string(serr.Type), elapsed)
		slog.WarnContext(ctx, "Command failed",
			"command", req.Command,
			"error_type", serr.Type,
			"error", err,
			"duration", elapsed,
		)
		return domain.Failure(serr.Message)
	}

	d.metrics.Observe(req.Command, string(domain.ResponseSuccess), elapsed)
	slog.DebugContext(ctx, "Command succeeded", "command", req.Command, "duration", elapsed)
	return domain.Success(result)
}

func (d *Dispatcher[C]) invoke(ctx context.Context, name string, h HandlerFunc[C], params []byte) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Command handler panicked", "command", name, "panic", r)
			result = nil
			err = apperrors.HandlerMessage(fmt.Sprintf("command %s failed unexpectedly", name))
		}
	}()
	return h(ctx, d.app, params)
}
