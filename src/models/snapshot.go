package models

import "time"

// -----------------------------------------------------------------------------
// Snapshot Structures (cached state published by the fetcher)
// -----------------------------------------------------------------------------

// MFastSnapshot holds the fast entity group: positions, events, stats.
// All fields of one snapshot belong to the same refresh cycle.
type MFastSnapshot struct {
	Positions []MPosition `json:"positions"`
	Events    []MEvent    `json:"events"`
	Stats     *MStats     `json:"stats"`
	Timestamp time.Time   `json:"timestamp"`
}

// MSlowSnapshot holds the slow entity group: status, trades, performance.
type MSlowSnapshot struct {
	Status       *MSystemStatus `json:"status"`
	RecentTrades []MTrade       `json:"recent_trades"`
	Performance  []MPerformance `json:"performance"`
	Timestamp    time.Time      `json:"timestamp"`
}

// MFullSnapshot combines both groups plus the signal feed state. Sent once
// on websocket connect and on explicit refresh.
type MFullSnapshot struct {
	Positions    []MPosition    `json:"positions"`
	Events       []MEvent       `json:"events"`
	Stats        *MStats        `json:"stats"`
	Status       *MSystemStatus `json:"status"`
	RecentTrades []MTrade       `json:"recent_trades"`
	Performance  []MPerformance `json:"performance"`
	Signals      []MSignal      `json:"signals"`
	SignalStatus *MSignalStatus `json:"signal_status"`
	Timestamp    time.Time      `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// Wire message for websocket clients
// -----------------------------------------------------------------------------

type MWSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// -----------------------------------------------------------------------------
// MFetcherStatus is the engine's externally observable health surface.
// -----------------------------------------------------------------------------

type MFetcherStatus struct {
	FastErrors    int   `json:"fast_consecutive_errors"`
	SlowErrors    int   `json:"slow_consecutive_errors"`
	Degraded      bool  `json:"degraded"`
	LastFastCycle int64 `json:"last_fast_cycle"`
	LastSlowCycle int64 `json:"last_slow_cycle"`
}
