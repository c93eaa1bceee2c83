// Package websocket serves the event stream: each connection registers an
// outbound queue with the hub and relays queued events to the client until
// either side goes away.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/crabnebula-dev/gitbutler/internal/broadcast"
	"github.com/crabnebula-dev/gitbutler/internal/domain"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
	"github.com/crabnebula-dev/gitbutler/internal/platform/correlation"
	apperrors "github.com/crabnebula-dev/gitbutler/internal/platform/errors"
)

const (
	defaultWriteDeadline = 5 * time.Second
	defaultPingInterval  = 30 * time.Second
	defaultPongDeadline  = 60 * time.Second
	maxInboundMessage    = 64 * 1024
)

var (
	errClientClosed = errors.New("client closed the connection")
	errEvicted      = errors.New("subscriber queue overflowed")
	errQueueClosed  = errors.New("subscriber queue closed")
)

// Subscribers is the part of the hub a session needs.
type Subscribers interface {
	Register(id uuid.UUID, out broadcast.Outbox)
	Deregister(id uuid.UUID)
}

// Options tunes the handler. Zero durations fall back to the defaults.
type Options struct {
	QueueLimit    int
	Limits        *ConnectionLimits
	Clock         clockwork.Clock
	Metrics       *metrics.WebSocketMetrics
	WriteDeadline time.Duration
	PingInterval  time.Duration
	PongDeadline  time.Duration
}

// Handler upgrades GET /ws requests and runs one session per connection.
type Handler struct {
	subscribers Subscribers
	opts        Options
	upgrader    ws.Upgrader

	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
}

func NewHandler(subscribers Subscribers, opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.WriteDeadline <= 0 {
		opts.WriteDeadline = defaultWriteDeadline
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongDeadline <= 0 {
		opts.PongDeadline = defaultPongDeadline
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		subscribers: subscribers,
		opts:        opts,
		upgrader: ws.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Serve is the echo handler for the event stream.
func (h *Handler) Serve(c echo.Context) error {
	reqCtx := c.Request().Context()

	if h.ctx.Err() != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "server is shutting down"})
	}

	ip := c.RealIP()
	if h.opts.Limits != nil {
		ok, reason := h.opts.Limits.Acquire(ip)
		if !ok {
			h.opts.Metrics.Rejected(string(reason))
			slog.WarnContext(reqCtx, "WebSocket connection rejected", "ip", ip, "reason", reason)
			return c.JSON(reason.HTTPStatus(), map[string]string{
				"error":  "connection limit reached",
				"reason": string(reason),
			})
		}
		defer h.opts.Limits.Release(ip)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written an error response.
		slog.WarnContext(reqCtx, "WebSocket upgrade failed", "ip", ip, "error", err)
		return nil
	}

	h.sessions.Add(1)
	defer h.sessions.Done()

	s := &session{
		id:      uuid.New(),
		conn:    conn,
		handler: h,
	}
	s.run(reqCtx, ip)
	return nil
}

// Shutdown ends every open session with a going-away close frame and waits
// for them to finish or for ctx to expire. New connections are refused.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type session struct {
	id      uuid.UUID
	conn    *ws.Conn
	handler *Handler
}

func (s *session) run(reqCtx context.Context, ip string) {
	h := s.handler

	base := correlation.WithConnection(h.ctx, s.id.String())
	if cid, ok := correlation.ID(reqCtx); ok {
		base = correlation.WithID(base, cid)
	}

	queue := broadcast.NewQueue(h.opts.QueueLimit)
	h.subscribers.Register(s.id, queue)
	h.opts.Metrics.Connected()
	slog.InfoContext(base, "WebSocket client connected", "ip", ip)

	g, ctx := errgroup.WithContext(base)
	g.Go(func() error { return s.relay(ctx, queue) })
	g.Go(s.receive)
	g.Go(func() error {
		<-ctx.Done()
		h.subscribers.Deregister(s.id)
		queue.Close()
		s.close(h.ctx.Err() != nil)
		return nil
	})

	err := g.Wait()
	cause := endCause(err)
	if h.ctx.Err() != nil {
		cause = "shutdown"
	}
	h.opts.Metrics.Disconnected(cause)

	switch cause {
	case "client_closed", "shutdown":
		slog.InfoContext(base, "WebSocket client disconnected", "cause", cause)
	default:
		slog.WarnContext(base, "WebSocket session ended", "cause", cause, "error", err)
	}
}

// relay is the only goroutine writing data frames to the connection.
func (s *session) relay(ctx context.Context, queue *broadcast.Queue) error {
	opts := s.handler.opts
	ticker := opts.Clock.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-queue.Ready():
			for {
				ev, ok := queue.TryPop()
				if !ok {
					break
				}
				if err := s.write(ctx, ev); err != nil {
					return err
				}
			}
			if queue.Closed() {
				if queue.Overflowed() {
					s.writeClose(ws.CloseTryAgainLater, "event queue overflow")
					return errEvicted
				}
				return errQueueClosed
			}
		case <-ticker.Chan():
			s.setWriteDeadline()
			if err := s.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return apperrors.TransportFailure("ping", err)
			}
		}
	}
}

func (s *session) write(ctx context.Context, ev domain.WireEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping unencodable event", "event", ev.Name, "error", err)
		return nil
	}

	s.setWriteDeadline()
	if err := s.conn.WriteMessage(ws.TextMessage, data); err != nil {
		return apperrors.TransportFailure("write", err)
	}
	s.handler.opts.Metrics.FrameWritten()
	return nil
}

// receive drains client frames to observe pongs and close frames. Payloads
// are ignored.
func (s *session) receive() error {
	opts := s.handler.opts
	extend := func() error {
		return s.conn.SetReadDeadline(opts.Clock.Now().Add(opts.PongDeadline))
	}

	s.conn.SetReadLimit(maxInboundMessage)
	_ = extend()
	s.conn.SetPongHandler(func(string) error { return extend() })

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway, ws.CloseNoStatusReceived) {
				return errClientClosed
			}
			return apperrors.TransportFailure("read", err)
		}
		_ = extend()
	}
}

func (s *session) setWriteDeadline() {
	_ = s.conn.SetWriteDeadline(s.handler.opts.Clock.Now().Add(s.handler.opts.WriteDeadline))
}

func (s *session) writeClose(code int, reason string) {
	deadline := s.handler.opts.Clock.Now().Add(s.handler.opts.WriteDeadline)
	_ = s.conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(code, reason), deadline)
}

func (s *session) close(shutdown bool) {
	if shutdown {
		s.writeClose(ws.CloseGoingAway, "server shutting down")
	}
	_ = s.conn.Close()
}

func endCause(err error) string {
	switch {
	case errors.Is(err, errClientClosed):
		return "client_closed"
	case errors.Is(err, errEvicted):
		return "evicted"
	case errors.Is(err, context.Canceled), errors.Is(err, errQueueClosed):
		return "shutdown"
	case apperrors.IsType(err, apperrors.TypeTransport):
		return "transport"
	default:
		return "unknown"
	}
}
