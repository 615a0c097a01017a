package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trading-monitor/src/fetcher"
	"trading-monitor/src/logger"
	"trading-monitor/src/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

type stubStore struct {
	positions []models.MPosition
	events    []models.MEvent
}

func (s *stubStore) Initialize() error              { return nil }
func (s *stubStore) Ping(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                   { return nil }

func (s *stubStore) ActivePositions(ctx context.Context) ([]models.MPosition, error) {
	return s.positions, nil
}

func (s *stubStore) RecentEvents(ctx context.Context, since time.Time) ([]models.MEvent, error) {
	return s.events, nil
}

func (s *stubStore) Statistics(ctx context.Context) (*models.MStats, error) {
	return &models.MStats{Winners: 4, Losers: 1}, nil
}

func (s *stubStore) SystemStatus(ctx context.Context) (int, float64, error) {
	return len(s.positions), 2500.0, nil
}

func (s *stubStore) RecentTrades(ctx context.Context) ([]models.MTrade, error) {
	return []models.MTrade{{ID: 1, Symbol: "BTCUSDT"}}, nil
}

func (s *stubStore) PerformanceSummary(ctx context.Context) ([]models.MPerformance, error) {
	return []models.MPerformance{{Period: "7d"}}, nil
}

func serverConfig() *models.MConfig {
	return &models.MConfig{
		Name:     "test",
		Host:     "127.0.0.1",
		Port:     8900,
		LogLevel: "ERROR",
		Fetcher: models.MFetcherConfig{
			FastIntervalSeconds: 1.5,
			SlowIntervalSeconds: 10.0,
			MaxEvents:           100,
			ErrorThreshold:      5,
		},
	}
}

func newTestServer(t *testing.T, store *stubStore) *Server {
	t.Helper()

	log := logger.NewLogger("ERROR", "test")
	f := fetcher.NewFetcher(serverConfig(), store, log)
	f.RefreshFast(context.Background())
	f.RefreshSlow(context.Background())

	return NewServer(serverConfig(), f, log)
}

func testPositions() []models.MPosition {
	return []models.MPosition{
		{ID: 1, Symbol: "BTCUSDT", Side: "LONG", EntryPrice: 50000},
		{ID: 2, Symbol: "ETHUSDT", Side: "SHORT", EntryPrice: 3000},
	}
}

// -----------------------------------------------------------------------------
// REST API
// -----------------------------------------------------------------------------

func TestAPI_Positions(t *testing.T) {
	s := newTestServer(t, &stubStore{positions: testPositions()})

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/positions", nil))

	require.Equal(t, 200, w.Code)

	var body struct {
		Positions []models.MPosition `json:"positions"`
		Count     int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "BTCUSDT", body.Positions[0].Symbol)
}

func TestAPI_EventsLimit(t *testing.T) {
	events := make([]models.MEvent, 10)
	now := time.Now()
	for i := range events {
		events[i] = models.MEvent{ID: int64(10 - i), CreatedAt: now.Add(-time.Duration(i) * time.Second)}
	}
	s := newTestServer(t, &stubStore{events: events})

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/events?limit=3", nil))

	require.Equal(t, 200, w.Code)

	var body struct {
		Events []models.MEvent `json:"events"`
		Count  int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, int64(10), body.Events[0].ID)
}

func TestAPI_Stats(t *testing.T) {
	s := newTestServer(t, &stubStore{})

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats", nil))

	require.Equal(t, 200, w.Code)

	var stats models.MStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.Winners)
}

func TestAPI_Status(t *testing.T) {
	s := newTestServer(t, &stubStore{positions: testPositions()})

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))

	require.Equal(t, 200, w.Code)

	var status models.MSystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 2, status.ActivePositions)
	assert.True(t, status.DBConnected)
}

func TestAPI_SignalsDisabled(t *testing.T) {
	s := newTestServer(t, &stubStore{})

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/signals", nil))

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":false`)
}

func TestAPI_Health(t *testing.T) {
	s := newTestServer(t, &stubStore{})

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))

	require.Equal(t, 200, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["connections"])
}

func TestAPI_Snapshot(t *testing.T) {
	s := newTestServer(t, &stubStore{positions: testPositions()})

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/snapshot", nil))

	require.Equal(t, 200, w.Code)

	var snap models.MFullSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Len(t, snap.Positions, 2)
	assert.NotNil(t, snap.Status)
}

// -----------------------------------------------------------------------------
// WebSocket
// -----------------------------------------------------------------------------

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.MWSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg models.MWSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_InitialSnapshotOnConnect(t *testing.T) {
	s := newTestServer(t, &stubStore{positions: testPositions()})
	go s.runHub()

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, "snapshot", msg.Type)

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	positions, ok := data["positions"].([]interface{})
	require.True(t, ok)
	assert.Len(t, positions, 2)
}

func TestWebSocket_RefreshAndPingCommands(t *testing.T) {
	s := newTestServer(t, &stubStore{})
	go s.runHub()

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	// Initial snapshot
	msg := readMessage(t, conn)
	require.Equal(t, "snapshot", msg.Type)

	// refresh triggers a full snapshot resend
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("refresh")))
	msg = readMessage(t, conn)
	assert.Equal(t, "snapshot", msg.Type)

	// ping gets a pong
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	msg = readMessage(t, conn)
	assert.Equal(t, "pong", msg.Type)

	// Unknown commands are ignored, the connection stays up
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("bogus")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	msg = readMessage(t, conn)
	assert.Equal(t, "pong", msg.Type)
}

func TestWebSocket_BroadcastReachesAllClients(t *testing.T) {
	s := newTestServer(t, &stubStore{})
	go s.runHub()

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	connA := dialWS(t, srv)
	defer connA.Close()
	connB := dialWS(t, srv)
	defer connB.Close()

	// Drain initial snapshots
	readMessage(t, connA)
	readMessage(t, connB)

	require.Eventually(t, func() bool {
		return s.clientCount.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)

	s.Broadcast("fast", s.Fetcher.SnapshotFast())

	msgA := readMessage(t, connA)
	msgB := readMessage(t, connB)
	assert.Equal(t, "fast", msgA.Type)
	assert.Equal(t, "fast", msgB.Type)
}

// -----------------------------------------------------------------------------
// Hub internals
// -----------------------------------------------------------------------------

func TestHub_SlowClientRemovedOthersKept(t *testing.T) {
	s := newTestServer(t, &stubStore{})
	go s.runHub()

	healthy := &Client{id: "healthy", hub: s, send: make(chan interface{}, 16)}
	stalled := &Client{id: "stalled", hub: s, send: make(chan interface{}, 1)}

	s.register <- healthy
	s.register <- stalled

	require.Eventually(t, func() bool {
		return s.clientCount.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Drain the initial snapshots so both buffers start empty, then wedge
	// the stalled client's single-slot buffer
	<-healthy.send
	<-stalled.send
	stalled.send <- models.MWSMessage{Type: "stuffing"}

	s.Broadcast("fast", nil)

	// The healthy client still gets the update
	select {
	case msg := <-healthy.send:
		assert.Equal(t, "fast", msg.(models.MWSMessage).Type)
	case <-time.After(2 * time.Second):
		t.Fatal("healthy client never received the broadcast")
	}

	// The stalled client is dropped, exactly one connection remains
	require.Eventually(t, func() bool {
		return s.clientCount.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStop_ClosesClientConnections(t *testing.T) {
	s := newTestServer(t, &stubStore{})
	go s.runHub()
	s.wg.Add(1)
	go s.runPushLoop()

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	msg := readMessage(t, conn)
	require.Equal(t, "snapshot", msg.Type)

	require.Eventually(t, func() bool {
		return s.clientCount.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())

	// The hub closes every send channel on shutdown, which ends writePump
	// and tears the connection down from the server side.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var err error
	for err == nil {
		var discard models.MWSMessage
		err = conn.ReadJSON(&discard)
	}
	assert.Error(t, err)

	require.Eventually(t, func() bool {
		return s.clientCount.Load() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithoutClientsIsNoop(t *testing.T) {
	s := newTestServer(t, &stubStore{})

	// No hub loop running; without clients the send must not block
	s.Broadcast("fast", nil)
	assert.Empty(t, s.broadcast)
}
