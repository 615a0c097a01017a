package server

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"trading-monitor/src/fetcher"
	"trading-monitor/src/interfaces"
	"trading-monitor/src/logger"
	"trading-monitor/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

type Server struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Fetcher *fetcher.Fetcher
	Signals interfaces.ISignalFeed // nil when the signal feed is disabled
	engine  *gin.Engine

	// WebSocket clients
	clients     map[*Client]struct{}
	clientCount atomic.Int64
	broadcast   chan models.MWSMessage
	register    chan *Client
	unregister  chan *Client

	stopPush chan struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, f *fetcher.Fetcher, log *logger.Logger) *Server {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config:  cfg,
		Logger:  log,
		Fetcher: f,
		engine:  gin.Default(),
		clients: make(map[*Client]struct{}),
		// Buffered channel to prevent lock/blocking
		// Queue size of 256 ensures we can handle bursts of updates
		broadcast:  make(chan models.MWSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopPush:   make(chan struct{}),
		shutdown:   make(chan struct{}),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/positions", s.getPositions)
	s.engine.GET("/api/events", s.getEvents)
	s.engine.GET("/api/stats", s.getStats)
	s.engine.GET("/api/status", s.getStatus)
	s.engine.GET("/api/recent-trades", s.getRecentTrades)
	s.engine.GET("/api/performance", s.getPerformance)
	s.engine.GET("/api/signals", s.getSignals)
	s.engine.GET("/api/signals/status", s.getSignalStatus)
	s.engine.GET("/api/snapshot", s.getSnapshot)
	s.engine.GET("/api/health", s.getHealth)

	// WebSocket endpoint
	s.engine.GET("/ws/live", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.runHub()

	s.wg.Add(1)
	go s.runPushLoop()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

// Stop halts the push loop first, then tells the hub to disconnect every
// client. The hub keeps servicing register/unregister afterwards so a late
// readPump exit never blocks on its deferred unregister send.
func (s *Server) Stop() error {
	close(s.stopPush)
	s.wg.Wait()
	close(s.shutdown)
	return nil
}

// -----------------------------------------------------------------------------
// Push Loop
// -----------------------------------------------------------------------------

// runPushLoop drives the live feed. It ticks at the fast cadence and folds
// the slow cadence in with a counter instead of a second timer. When no
// client is connected the loop idles without building snapshots.
func (s *Server) runPushLoop() {
	defer s.wg.Done()

	fastInterval := time.Duration(s.Config.Fetcher.FastIntervalSeconds * float64(time.Second))
	slowEvery := int(s.Config.Fetcher.SlowIntervalSeconds / s.Config.Fetcher.FastIntervalSeconds)
	if slowEvery < 1 {
		slowEvery = 1
	}

	ticker := time.NewTicker(fastInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-s.stopPush:
			s.Logger.Info("Push loop stopped")
			return
		case <-ticker.C:
			tick++
			if s.clientCount.Load() == 0 {
				continue
			}

			s.Broadcast("fast", s.Fetcher.SnapshotFast())
			if tick%slowEvery == 0 {
				s.Broadcast("slow", s.Fetcher.SnapshotSlow())
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *Server) getPositions(c *gin.Context) {
	snap := s.Fetcher.SnapshotFast()
	c.JSON(200, gin.H{
		"positions": snap.Positions,
		"count":     len(snap.Positions),
		"timestamp": snap.Timestamp,
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getEvents(c *gin.Context) {
	snap := s.Fetcher.SnapshotFast()

	events := snap.Events
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit < len(events) {
			events = events[:limit]
		}
	}

	c.JSON(200, gin.H{
		"events":    events,
		"count":     len(events),
		"timestamp": snap.Timestamp,
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getStats(c *gin.Context) {
	snap := s.Fetcher.SnapshotFast()
	if snap.Stats == nil {
		c.JSON(200, gin.H{})
		return
	}
	c.JSON(200, snap.Stats)
}

// -----------------------------------------------------------------------------

func (s *Server) getStatus(c *gin.Context) {
	snap := s.Fetcher.SnapshotSlow()
	if snap.Status == nil {
		c.JSON(200, gin.H{"status": "starting"})
		return
	}
	c.JSON(200, snap.Status)
}

// -----------------------------------------------------------------------------

func (s *Server) getRecentTrades(c *gin.Context) {
	snap := s.Fetcher.SnapshotSlow()
	c.JSON(200, gin.H{
		"trades": snap.RecentTrades,
		"count":  len(snap.RecentTrades),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getPerformance(c *gin.Context) {
	snap := s.Fetcher.SnapshotSlow()
	c.JSON(200, gin.H{
		"performance": snap.Performance,
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getSignals(c *gin.Context) {
	if s.Signals == nil {
		c.JSON(200, gin.H{"signals": []models.MSignal{}, "enabled": false})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	c.JSON(200, gin.H{
		"signals": s.Signals.Signals(limit),
		"enabled": true,
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getSignalStatus(c *gin.Context) {
	if s.Signals == nil {
		c.JSON(200, gin.H{"enabled": false})
		return
	}
	c.JSON(200, s.Signals.Status())
}

// -----------------------------------------------------------------------------

func (s *Server) getSnapshot(c *gin.Context) {
	c.JSON(200, s.Fetcher.FullSnapshot())
}

// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	status := s.Fetcher.Status()

	health := "ok"
	if status.Degraded {
		health = "degraded"
	}

	c.JSON(200, gin.H{
		"status":         health,
		"connections":    s.clientCount.Load(),
		"uptime_seconds": s.Fetcher.Uptime().Seconds(),
		"fetcher":        status,
	})
}
