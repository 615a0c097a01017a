package signal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"trading-monitor/src/helpers"
	"trading-monitor/src/logger"
	"trading-monitor/src/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type recordedBroadcast struct {
	kind string
	data interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedBroadcast
	seen   chan string
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{seen: make(chan string, 32)}
}

func (f *fakeBroadcaster) Broadcast(kind string, data interface{}) {
	f.mu.Lock()
	f.events = append(f.events, recordedBroadcast{kind: kind, data: data})
	f.mu.Unlock()
	f.seen <- kind
}

func (f *fakeBroadcaster) Start() error { return nil }
func (f *fakeBroadcaster) Stop() error  { return nil }

func (f *fakeBroadcaster) byKind(kind string) []recordedBroadcast {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []recordedBroadcast
	for _, e := range f.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func waitForKind(t *testing.T, f *fakeBroadcaster, kind string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case k := <-f.seen:
			if k == kind {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q broadcast", kind)
		}
	}
}

// -----------------------------------------------------------------------------
// Test server
// -----------------------------------------------------------------------------

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startSignalServer runs a ws endpoint that performs the auth handshake
// and then hands the connection to serve.
func startSignalServer(t *testing.T, expectToken string, authOK bool, serve func(*websocket.Conn)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth_required"}))

		var auth struct {
			Type  string `json:"type"`
			Token string `json:"token"`
		}
		require.NoError(t, conn.ReadJSON(&auth))
		assert.Equal(t, "auth", auth.Type)
		assert.Equal(t, expectToken, auth.Token)

		if !authOK {
			conn.WriteJSON(map[string]string{"type": "auth_failed", "message": "bad token"})
			return
		}

		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type": "auth_success", "strategy_rules_count": 4, "signal_window": 15,
		}))

		if serve != nil {
			serve(conn)
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestClient(url string) *Client {
	return NewClient(&models.MSignalWSConfig{
		URL:                      url,
		Token:                    "secret",
		ReconnectIntervalSeconds: 1,
		BufferSize:               5,
	}, logger.NewLogger("ERROR", "test"))
}

// -----------------------------------------------------------------------------
// Normalization
// -----------------------------------------------------------------------------

func TestNormalize_Defaults(t *testing.T) {
	sig := normalize(map[string]interface{}{})

	assert.Equal(t, "???", sig.Symbol)
	assert.Equal(t, 0.0, sig.Score)
	assert.Empty(t, sig.Patterns)
	assert.Nil(t, sig.RSI)
	assert.Nil(t, sig.VolumeZScore)
	assert.Nil(t, sig.OIDeltaPct)
	assert.Equal(t, "", sig.Timestamp)
	assert.False(t, sig.ReceivedAt.IsZero())
}

func TestNormalize_FullRecord(t *testing.T) {
	sig := normalize(map[string]interface{}{
		"pair_symbol":   "BTCUSDT",
		"total_score":   8.5,
		"patterns":      []interface{}{"breakout", "volume_spike"},
		"rsi":           71.2,
		"volume_zscore": 2.4,
		"oi_delta_pct":  -1.1,
		"timestamp":     "2026-08-30T12:00:00Z",
	})

	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.InDelta(t, 8.5, sig.Score, 0.001)
	assert.Equal(t, []string{"breakout", "volume_spike"}, sig.Patterns)
	require.NotNil(t, sig.RSI)
	assert.InDelta(t, 71.2, *sig.RSI, 0.001)
	assert.Equal(t, "2026-08-30T12:00:00Z", sig.Timestamp)
}

func TestNormalize_MistypedFields(t *testing.T) {
	sig := normalize(map[string]interface{}{
		"pair_symbol": 42,
		"total_score": "high",
		"patterns":    "breakout",
	})

	// Wrong types fall back to defaults instead of failing
	assert.Equal(t, "???", sig.Symbol)
	assert.Equal(t, 0.0, sig.Score)
	assert.Empty(t, sig.Patterns)
}

// -----------------------------------------------------------------------------
// Handshake and dispatch
// -----------------------------------------------------------------------------

func TestClient_HandshakeAndSingleSignal(t *testing.T) {
	srv := startSignalServer(t, "secret", true, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]interface{}{
			"type": "signal", "pair_symbol": "ETHUSDT", "total_score": 6.0,
		})
		time.Sleep(2 * time.Second)
	})
	defer srv.Close()

	c := newTestClient(wsURL(srv))
	bc := newFakeBroadcaster()
	c.Broadcaster = bc

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}
	c.Start(ctx, wg)

	waitForKind(t, bc, "signal_status")
	waitForKind(t, bc, "signal")

	sigs := c.Signals(0)
	require.Len(t, sigs, 1)
	assert.Equal(t, "ETHUSDT", sigs[0].Symbol)

	status := c.Status()
	assert.True(t, status.Connected)
	assert.True(t, status.Authenticated)
	assert.Equal(t, int64(1), status.SignalsReceived)
	assert.NotNil(t, status.LastSignalTime)
	assert.NotNil(t, status.ConnectedAt)
	assert.Equal(t, 1, status.BufferSize)

	forwarded := bc.byKind("signal")
	require.Len(t, forwarded, 1)

	cancel()
	srv.Close()
	wg.Wait()
	assert.Equal(t, StateStopped, c.State())
}

func TestClient_BatchForwardedAsOneUpdate(t *testing.T) {
	srv := startSignalServer(t, "secret", true, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]interface{}{
			"type": "signals",
			"data": []interface{}{
				map[string]interface{}{"pair_symbol": "A", "total_score": 1.0},
				map[string]interface{}{"pair_symbol": "B", "total_score": 2.0},
				map[string]interface{}{"pair_symbol": "C", "total_score": 3.0},
			},
		})
		time.Sleep(2 * time.Second)
	})
	defer srv.Close()

	c := newTestClient(wsURL(srv))
	bc := newFakeBroadcaster()
	c.Broadcaster = bc

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}
	c.Start(ctx, wg)

	waitForKind(t, bc, "signals_batch")

	// Three records counted individually, buffer newest first
	assert.Equal(t, int64(3), c.Status().SignalsReceived)
	sigs := c.Signals(0)
	require.Len(t, sigs, 3)
	assert.Equal(t, "C", sigs[0].Symbol)
	assert.Equal(t, "A", sigs[2].Symbol)

	// But exactly one combined broadcast went out
	batches := bc.byKind("signals_batch")
	require.Len(t, batches, 1)
	payload, ok := batches[0].data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 3, payload["count"])

	cancel()
	srv.Close()
	wg.Wait()
}

func TestClient_AuthFailureTriggersReconnect(t *testing.T) {
	srv := startSignalServer(t, "secret", false, nil)
	defer srv.Close()

	c := newTestClient(wsURL(srv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}
	c.Start(ctx, wg)

	// Two failed attempts take ~1s of fixed-interval retry
	require.Eventually(t, func() bool {
		return c.Status().ReconnectCount >= 1
	}, 4*time.Second, 50*time.Millisecond)

	assert.False(t, c.Status().Authenticated)
	assert.Empty(t, c.Signals(0))

	cancel()
	wg.Wait()
}

func TestClient_UnexpectedChallengeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]string{"type": "hello"})
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	c := newTestClient(wsURL(srv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}
	c.Start(ctx, wg)

	require.Eventually(t, func() bool {
		return c.Status().ReconnectCount >= 1
	}, 4*time.Second, 50*time.Millisecond)
	assert.False(t, c.Status().Authenticated)

	cancel()
	wg.Wait()
}

func TestClient_SilentServerTimesOut(t *testing.T) {
	// The server accepts the upgrade but never sends the challenge; the
	// read deadline must abandon the attempt and schedule a reconnect
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(8 * time.Second)
	}))
	defer srv.Close()

	c := newTestClient(wsURL(srv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}
	c.Start(ctx, wg)

	require.Eventually(t, func() bool {
		return c.Status().ReconnectCount >= 1
	}, 7*time.Second, 100*time.Millisecond)
	assert.False(t, c.Status().Authenticated)

	cancel()
	wg.Wait()
}

func TestClient_DialFailureIsUpstreamError(t *testing.T) {
	c := newTestClient("ws://127.0.0.1:1")

	err := c.connectAndListen(context.Background())
	require.Error(t, err)

	var ue *helpers.UpstreamError
	assert.True(t, errors.As(err, &ue))
}

func TestClient_BufferEvictsOldest(t *testing.T) {
	c := newTestClient("ws://unused")

	for i := 0; i < 8; i++ {
		c.handleMessage([]byte(`{"type":"signal","pair_symbol":"S` + string(rune('0'+i)) + `"}`))
	}

	// Capacity is 5; oldest three evicted, newest first
	sigs := c.Signals(0)
	require.Len(t, sigs, 5)
	assert.Equal(t, "S7", sigs[0].Symbol)
	assert.Equal(t, "S3", sigs[4].Symbol)
	assert.Equal(t, int64(8), c.Status().SignalsReceived)
}

func TestClient_ServerErrorIsLogOnly(t *testing.T) {
	c := newTestClient("ws://unused")

	c.handleMessage([]byte(`{"type":"error","message":"rate limited"}`))
	c.handleMessage([]byte(`{"type":"pong"}`))
	c.handleMessage([]byte(`not json`))

	assert.Empty(t, c.Signals(0))
	assert.Equal(t, int64(0), c.Status().SignalsReceived)
}

func TestClient_UnknownFrameTypeDropped(t *testing.T) {
	c := newTestClient("ws://unused")

	c.handleMessage([]byte(`{"type":"heartbeat","seq":7}`))
	c.handleMessage([]byte(`{"type":"","payload":{}}`))
	c.handleMessage([]byte(`{"no_type_at_all":true}`))

	assert.Empty(t, c.Signals(0))
	assert.Equal(t, int64(0), c.Status().SignalsReceived)
}
