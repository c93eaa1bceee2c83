package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crabnebula-dev/gitbutler/internal/broadcast"
	"github.com/crabnebula-dev/gitbutler/internal/domain"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type testEnv struct {
	hub     *broadcast.Hub
	handler *Handler
	url     string
}

// newTestEnv serves the event stream from an echo instance behind httptest.
func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	hub := broadcast.NewHub(nil)
	h := NewHandler(hub, opts)

	e := echo.New()
	e.GET("/ws", h.Serve)
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = h.Shutdown(ctx)
		server.Close()
	})

	return &testEnv{
		hub:     hub,
		handler: h,
		url:     "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
}

func (env *testEnv) dial(t *testing.T) *ws.Conn {
	t.Helper()
	conn, _, err := ws.DefaultDialer.Dial(env.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (env *testEnv) waitForSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return env.hub.Count() == n }, waitFor, tick,
		"expected %d subscribers, have %d", n, env.hub.Count())
}

func readEvent(t *testing.T, conn *ws.Conn) domain.WireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, ws.TextMessage, msgType)

	var ev domain.WireEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestSession_TwoClientsReceiveHeadEvent(t *testing.T) {
	env := newTestEnv(t, Options{})
	first := env.dial(t)
	second := env.dial(t)
	env.waitForSubscribers(t, 2)

	ev, err := domain.NewWireEvent("project://42/git/head", map[string]string{"head": "refs/heads/main"})
	require.NoError(t, err)
	env.hub.Send(ev)

	for _, conn := range []*ws.Conn{first, second} {
		got := readEvent(t, conn)
		assert.Equal(t, "project://42/git/head", got.Name)
		assert.JSONEq(t, `{"head":"refs/heads/main"}`, string(got.Payload))
	}
}

func TestSession_FrameShape(t *testing.T) {
	env := newTestEnv(t, Options{})
	conn := env.dial(t)
	env.waitForSubscribers(t, 1)

	env.hub.Send(domain.WireEvent{Name: "project://1/git/fetch", Payload: json.RawMessage(`{}`)})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"project://1/git/fetch","payload":{}}`, string(data))
}

func TestSession_PreservesOrder(t *testing.T) {
	env := newTestEnv(t, Options{})
	conn := env.dial(t)
	env.waitForSubscribers(t, 1)

	for i := range 50 {
		env.hub.Send(domain.WireEvent{Name: fmt.Sprintf("project://1/seq/%d", i), Payload: json.RawMessage(`{}`)})
	}
	for i := range 50 {
		assert.Equal(t, fmt.Sprintf("project://1/seq/%d", i), readEvent(t, conn).Name)
	}
}

func TestSession_ClientMessagesAreIgnored(t *testing.T) {
	env := newTestEnv(t, Options{})
	conn := env.dial(t)
	env.waitForSubscribers(t, 1)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"subscribe":"everything"}`)))
	env.hub.Send(domain.WireEvent{Name: "project://1/git/activity", Payload: json.RawMessage(`{}`)})

	assert.Equal(t, "project://1/git/activity", readEvent(t, conn).Name)
	assert.Equal(t, 1, env.hub.Count())
}

func TestSession_CloseDeregisters(t *testing.T) {
	env := newTestEnv(t, Options{})
	staying := env.dial(t)
	leaving := env.dial(t)
	env.waitForSubscribers(t, 2)

	msg := ws.FormatCloseMessage(ws.CloseNormalClosure, "bye")
	require.NoError(t, leaving.WriteMessage(ws.CloseMessage, msg))
	env.waitForSubscribers(t, 1)

	env.hub.Send(domain.WireEvent{Name: "project://1/git/fetch", Payload: json.RawMessage(`{}`)})
	assert.Equal(t, "project://1/git/fetch", readEvent(t, staying).Name)
}

func TestSession_AbruptDisconnectDeregisters(t *testing.T) {
	env := newTestEnv(t, Options{})
	conn := env.dial(t)
	env.waitForSubscribers(t, 1)

	require.NoError(t, conn.UnderlyingConn().Close())
	env.waitForSubscribers(t, 0)

	assert.NotPanics(t, func() {
		env.hub.Send(domain.WireEvent{Name: "project://1/git/fetch", Payload: json.RawMessage(`{}`)})
	})
}

func TestSession_SendsPings(t *testing.T) {
	env := newTestEnv(t, Options{PingInterval: 20 * time.Millisecond})
	conn := env.dial(t)

	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(ws.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	assert.Eventually(t, func() bool { return pings.Load() >= 2 }, waitFor, tick)
}

func TestSession_ConnectionLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWebSocketMetrics(reg)
	limits := NewConnectionLimits(LimitsConfig{MaxConnections: 1}, clockwork.NewRealClock())
	env := newTestEnv(t, Options{Limits: limits, Metrics: m})

	first := env.dial(t)
	env.waitForSubscribers(t, 1)

	_, resp, err := ws.DefaultDialer.Dial(env.url, nil)
	require.ErrorIs(t, err, ws.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
	assert.InDelta(t, 1, testutil.ToFloat64(m.RejectedConnections.WithLabelValues("global_limit")), 0)

	// Closing the first connection frees the slot.
	require.NoError(t, first.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "")))
	env.waitForSubscribers(t, 0)
	require.Eventually(t, func() bool { return limits.Current() == 0 }, waitFor, tick)

	env.dial(t)
	env.waitForSubscribers(t, 1)
}

func TestSession_ShutdownClosesSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWebSocketMetrics(reg)
	env := newTestEnv(t, Options{Metrics: m})
	conn := env.dial(t)
	env.waitForSubscribers(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, env.handler.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, _, err := conn.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseGoingAway), "unexpected error: %v", err)
	assert.Equal(t, 0, env.hub.Count())
	assert.InDelta(t, 0, testutil.ToFloat64(m.ActiveConnections), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SessionEnds.WithLabelValues("shutdown")), 0)

	_, resp, err := ws.DefaultDialer.Dial(env.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}
