package server

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/runner"
)

// mt parses a minute timestamp or fails the test.
func mt(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := engine.ParseMinute(s)
	require.NoError(t, err)
	return ts
}

// newTestEngine builds an engine over three released orders with the
// clock at 2026-01-05T07:30 and the machine stopped.
func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	matrix := engine.NewSetupMatrix()
	matrix.Set("F1", "F2", 15)
	matrix.Set("F2", "F1", 20)

	created := mt(t, "2026-01-05T07:30")
	orders := []*engine.WorkOrder{
		{
			OFID:               "OF00001",
			CreatedAt:          created,
			DueDate:            mt(t, "2026-01-05T12:00"),
			Priority:           3,
			Product:            "PRODUCT_F1",
			Format:             "F1",
			Qty:                9000,
			NominalRatePerHour: 9000,
			NominalDurationMin: 60,
		},
		{
			OFID:               "OF00002",
			CreatedAt:          created,
			DueDate:            mt(t, "2026-01-05T14:00"),
			Priority:           2,
			Product:            "PRODUCT_F2",
			Format:             "F2",
			Qty:                9000,
			NominalRatePerHour: 6000,
			NominalDurationMin: 90,
		},
		{
			OFID:               "OF00003",
			CreatedAt:          created,
			DueDate:            mt(t, "2026-01-05T16:00"),
			Priority:           5,
			Product:            "PRODUCT_F1",
			Format:             "F1",
			Qty:                6750,
			NominalRatePerHour: 9000,
			NominalDurationMin: 45,
		},
	}
	return engine.New(orders, matrix, engine.DefaultConfig(), nil)
}

// newTestServer wires a server over a fresh engine and runner. The
// runner and hub context are torn down with the test.
func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()

	eng := newTestEngine(t)
	run := runner.New(eng, nil)
	srv, err := New(eng, run, opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		if srv.runner.IsRunning() {
			srv.runner.Stop()
		}
		srv.cancel()
	})
	return srv
}

func TestNewServerValidation(t *testing.T) {
	eng := newTestEngine(t)
	run := runner.New(eng, nil)

	_, err := New(nil, run, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine cannot be nil")

	_, err = New(eng, nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner cannot be nil")

	srv, err := New(eng, run, Options{})
	require.NoError(t, err)
	assert.NotNil(t, srv.mux)
	assert.NotNil(t, srv.clients)
	assert.Equal(t, 0, srv.ClientCount())
}

// The hub owns the client set: registration and unregistration go
// through its channels, and unregistration closes the send queue.
func TestHubRegisterUnregister(t *testing.T) {
	srv := newTestServer(t, Options{})
	go srv.Run()

	client := &Client{server: srv, send: make(chan wsFrame, sendQueueSize), id: "hub_test_1"}
	srv.register <- client
	time.Sleep(20 * time.Millisecond)

	srv.mu.RLock()
	_, exists := srv.clients[client]
	srv.mu.RUnlock()
	assert.True(t, exists)
	assert.Equal(t, 1, srv.ClientCount())

	srv.unregister <- client
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, srv.ClientCount())

	_, open := <-client.send
	assert.False(t, open)
}

// A client beyond the connection cap is closed instead of registered.
func TestHubRefusesClientsBeyondLimit(t *testing.T) {
	srv := newTestServer(t, Options{})
	go srv.Run()

	for i := 0; i < MaxClients; i++ {
		srv.register <- &Client{server: srv, send: make(chan wsFrame, 1), id: fmt.Sprintf("bulk_%d", i)}
	}
	overflow := &Client{server: srv, send: make(chan wsFrame, 1), id: "overflow"}
	srv.register <- overflow

	select {
	case _, open := <-overflow.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("overflow client was not closed")
	}
	assert.Equal(t, MaxClients, srv.ClientCount())
}

// With nothing draining the broadcast queue, frames beyond its
// capacity are dropped and counted rather than blocking the caller.
func TestQueueBroadcastDropsWhenFull(t *testing.T) {
	srv := newTestServer(t, Options{})

	rep := engine.HourlyReport{Time: "2026-01-05T08:00"}
	for i := 0; i < broadcastQueueSize+5; i++ {
		srv.BroadcastReport(rep)
	}
	assert.EqualValues(t, 5, srv.broadcastDrops.Load())
}

// State frames pass through the rate limiter, so a burst well above
// the cap queues only a fraction of the frames.
func TestBroadcastStateRateLimited(t *testing.T) {
	srv := newTestServer(t, Options{})

	st := runner.State{}
	for i := 0; i < broadcastQueueSize; i++ {
		srv.BroadcastState(st)
	}
	assert.GreaterOrEqual(t, len(srv.broadcast), 1)
	assert.Less(t, len(srv.broadcast), broadcastQueueSize)
}

// Full WebSocket round trip: upgrade, hello frame, a broadcast frame,
// and unregistration when the client disconnects.
func TestHandleWebSocket(t *testing.T) {
	srv := newTestServer(t, Options{})
	go srv.Run()

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello wsFrame
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	data, ok := hello.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2026-01-05T07:30", data["engine_now"])
	assert.Equal(t, false, data["running"])

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, srv.ClientCount())

	srv.BroadcastReport(engine.HourlyReport{Time: "2026-01-05T08:00", QueueSize: 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "report", frame.Type)

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for srv.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, srv.ClientCount())
}

// Stop tears down live connections before cancelling the pumps.
func TestServerStopClosesClients(t *testing.T) {
	srv := newTestServer(t, Options{})
	go srv.Run()

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello wsFrame
	require.NoError(t, conn.ReadJSON(&hello))

	require.NoError(t, srv.Stop())
	assert.Equal(t, 0, srv.ClientCount())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, readErr := conn.ReadMessage()
	assert.Error(t, readErr)
}

func TestCheckOrigin(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, srv.checkOrigin(req), "no Origin header should pass")

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, srv.checkOrigin(req))
	req.Header.Set("Origin", "https://localhost:8443")
	assert.True(t, srv.checkOrigin(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, srv.checkOrigin(req))

	restricted := newTestServer(t, Options{AllowedOrigins: []string{"https://app.example.com"}})
	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, restricted.checkOrigin(req))
	req.Header.Set("Origin", "http://localhost:3000")
	assert.False(t, restricted.checkOrigin(req))
	req.Header.Del("Origin")
	assert.True(t, restricted.checkOrigin(req))
}

// Preflight requests short-circuit with 200 and the CORS headers;
// disallowed origins still reach the handler but get no allow header.
func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFindAvailablePort(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	assert.False(t, isPortAvailable(port))

	got, err := findAvailablePort(port)
	require.NoError(t, err)
	assert.Greater(t, got, port)
	assert.LessOrEqual(t, got, port+10)
}

func TestClientIDIncludesRemoteAddr(t *testing.T) {
	id := clientID("10.0.0.7:52000")
	assert.True(t, strings.HasPrefix(id, "10.0.0.7:52000_"))
}
