package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trading-monitor/src/helpers"
	"trading-monitor/src/interfaces"
	"trading-monitor/src/logger"
	"trading-monitor/src/models"
	"trading-monitor/src/utils"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Connection state machine. Transitions only move forward within a
// connection attempt; any failure resets to Disconnected and the run loop
// retries after a fixed interval. Stopped is terminal.
// -----------------------------------------------------------------------------

type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticating
	StateAuthenticated
	StateListening
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	authTimeout  = 5 * time.Second
	pingInterval = 20 * time.Second
	pongTimeout  = 10 * time.Second
	writeTimeout = 2 * time.Second
)

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type Client struct {
	Config      *models.MSignalWSConfig
	Logger      *logger.Logger
	Broadcaster interfaces.IBroadcaster // nil until wired by main

	state           atomic.Int32
	signalsReceived atomic.Int64
	reconnectCount  atomic.Int64

	mu             sync.RWMutex
	buffer         *utils.SignalBuffer
	lastSignalTime *time.Time
	connectedAt    *time.Time
}

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MSignalWSConfig, log *logger.Logger) *Client {
	return &Client{
		Config: cfg,
		Logger: log,
		buffer: utils.NewSignalBuffer(cfg.BufferSize),
	}
}

// -----------------------------------------------------------------------------

// Start launches the run loop. No-op when no URL is configured.
func (c *Client) Start(ctx context.Context, wg *sync.WaitGroup) {
	if c.Config.URL == "" {
		c.Logger.Info("Signal feed disabled (no URL configured)")
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.run(ctx)
	}()
}

// -----------------------------------------------------------------------------

// run is the connect/auth/listen/reconnect loop. Every exit path from a
// connection attempt funnels back here; the retry delay is fixed rather
// than backed off so the dashboard recovers quickly from server restarts.
func (c *Client) run(ctx context.Context) {
	c.Logger.Info("Signal client starting: %s", c.Config.URL)

	interval := time.Duration(c.Config.ReconnectIntervalSeconds) * time.Second

	for {
		if err := c.connectAndListen(ctx); err != nil {
			c.Logger.Warning("Signal connection ended: %v", err)
		}

		c.setState(StateDisconnected)
		c.mu.Lock()
		c.connectedAt = nil
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			c.setState(StateStopped)
			c.Logger.Info("Signal client stopped")
			return
		default:
		}

		c.reconnectCount.Add(1)
		c.Logger.Info("Signal client reconnecting in %s...", interval)

		select {
		case <-ctx.Done():
			c.setState(StateStopped)
			c.Logger.Info("Signal client stopped")
			return
		case <-time.After(interval):
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Client) connectAndListen(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.Config.URL, nil)
	if err != nil {
		return &helpers.UpstreamError{MonitorError: helpers.MonitorError{Message: "dial failed", Cause: err}}
	}
	defer conn.Close()

	c.setState(StateConnected)
	now := time.Now().UTC()
	c.mu.Lock()
	c.connectedAt = &now
	c.mu.Unlock()
	c.Logger.Info("Signal client connected")

	// 1. Auth handshake
	if err := c.authenticate(conn); err != nil {
		return err
	}
	c.setState(StateAuthenticated)
	c.Logger.Info("Signal client authenticated")

	if c.Broadcaster != nil {
		c.Broadcaster.Broadcast("signal_status", c.Status())
	}

	// 2. Keepalive pings while the read loop blocks; closing the conn on
	// ctx cancellation is what unblocks ReadMessage during shutdown
	done := make(chan struct{})
	defer close(done)
	go c.pinger(conn, done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// 3. Listen loop
	c.setState(StateListening)
	conn.SetReadDeadline(time.Time{})
	conn.SetPongHandler(func(string) error { return nil })

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		c.handleMessage(raw)
	}
}

// -----------------------------------------------------------------------------

// authenticate runs the auth_required / auth / auth_success exchange.
// Both server messages get a hard deadline so a silent server cannot
// hold the state machine in limbo.
func (c *Client) authenticate(conn *websocket.Conn) error {
	c.setState(StateAuthenticating)

	// Wait for auth_required
	conn.SetReadDeadline(time.Now().Add(authTimeout))
	var challenge struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&challenge); err != nil {
		return fmt.Errorf("auth timeout waiting for challenge: %w", err)
	}
	if challenge.Type != "auth_required" {
		return fmt.Errorf("expected auth_required, got: %s", challenge.Type)
	}

	// Send token
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(map[string]string{"type": "auth", "token": c.Config.Token}); err != nil {
		return fmt.Errorf("failed to send auth: %w", err)
	}

	// Wait for response
	conn.SetReadDeadline(time.Now().Add(authTimeout))
	var response struct {
		Type               string `json:"type"`
		Message            string `json:"message"`
		StrategyRulesCount int    `json:"strategy_rules_count"`
		SignalWindow       int    `json:"signal_window"`
	}
	if err := conn.ReadJSON(&response); err != nil {
		return fmt.Errorf("auth timeout waiting for result: %w", err)
	}
	if response.Type != "auth_success" {
		return fmt.Errorf("auth failed: %s", response.Message)
	}

	c.Logger.Info("Signal auth OK (rules=%d window=%dmin)",
		response.StrategyRulesCount, response.SignalWindow)
	return nil
}

// -----------------------------------------------------------------------------

func (c *Client) pinger(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Message Dispatch
// -----------------------------------------------------------------------------

func (c *Client) handleMessage(raw []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	msgType, _ := msg["type"].(string)

	switch msgType {
	case "signal":
		sig := normalize(msg)

		c.mu.Lock()
		c.buffer.Push(sig)
		now := time.Now().UTC()
		c.lastSignalTime = &now
		c.mu.Unlock()
		c.signalsReceived.Add(1)

		if c.Broadcaster != nil {
			c.Broadcaster.Broadcast("signal", sig)
		}

	case "signals":
		data, _ := msg["data"].([]interface{})
		if len(data) == 0 {
			return
		}

		c.mu.Lock()
		for _, item := range data {
			rawSig, _ := item.(map[string]interface{})
			c.buffer.Push(normalize(rawSig))
			c.signalsReceived.Add(1)
		}
		now := time.Now().UTC()
		c.lastSignalTime = &now
		held := c.buffer.All()
		c.mu.Unlock()

		// A batch is forwarded as one combined update, not per record
		if c.Broadcaster != nil {
			c.Broadcaster.Broadcast("signals_batch", map[string]interface{}{
				"signals": held,
				"count":   len(held),
			})
		}

	case "pong":
		// Keepalive reply, nothing to do

	case "error":
		message, _ := msg["message"].(string)
		c.Logger.Warning("Signal server error: %s", message)

	default:
		c.Logger.Debug("Ignoring unknown frame type: %q", msgType)
	}
}

// -----------------------------------------------------------------------------
// Normalization
// -----------------------------------------------------------------------------

// normalize maps a raw server payload onto MSignal. Every field is
// optional: missing or mistyped values fall back to defaults so a partial
// record never gets rejected.
func normalize(raw map[string]interface{}) models.MSignal {
	sig := models.MSignal{
		Symbol:       "???",
		Patterns:     []string{},
		Timestamp:    "",
		RSI:          floatPtr(raw, "rsi"),
		VolumeZScore: floatPtr(raw, "volume_zscore"),
		OIDeltaPct:   floatPtr(raw, "oi_delta_pct"),
		ReceivedAt:   time.Now().UTC(),
	}

	if s, ok := raw["pair_symbol"].(string); ok && s != "" {
		sig.Symbol = s
	}
	if f, ok := asFloat(raw["total_score"]); ok {
		sig.Score = f
	}
	if s, ok := raw["timestamp"].(string); ok {
		sig.Timestamp = s
	}
	if list, ok := raw["patterns"].([]interface{}); ok {
		for _, p := range list {
			if s, ok := p.(string); ok {
				sig.Patterns = append(sig.Patterns, s)
			}
		}
	}

	return sig
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func floatPtr(raw map[string]interface{}, key string) *float64 {
	if f, ok := asFloat(raw[key]); ok {
		return &f
	}
	return nil
}

// -----------------------------------------------------------------------------
// ISignalFeed Implementation
// -----------------------------------------------------------------------------

// Signals returns buffered signals, newest first. limit <= 0 means all.
func (c *Client) Signals(limit int) []models.MSignal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 {
		return c.buffer.All()
	}
	return c.buffer.Latest(limit)
}

// -----------------------------------------------------------------------------

func (c *Client) Status() models.MSignalStatus {
	state := c.State()

	c.mu.RLock()
	defer c.mu.RUnlock()

	return models.MSignalStatus{
		Connected:       state >= StateConnected && state != StateStopped,
		Authenticated:   state >= StateAuthenticated && state != StateStopped,
		URL:             c.Config.URL,
		SignalsReceived: c.signalsReceived.Load(),
		LastSignalTime:  c.lastSignalTime,
		ConnectedAt:     c.connectedAt,
		BufferSize:      c.buffer.Size(),
		ReconnectCount:  c.reconnectCount.Load(),
	}
}

// -----------------------------------------------------------------------------

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.Logger.Debug("Signal state: %s -> %s", prev, s)
	}
}
