package models

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// MStats: 24h trading statistics.
// -----------------------------------------------------------------------------

type MStats struct {
	OpenedCount   int      `json:"opened_count"`
	ClosedCount   int      `json:"closed_count"`
	TSActiveCount int      `json:"ts_active_count"`
	Winners       int      `json:"winners"`
	Losers        int      `json:"losers"`
	TotalPnl      float64  `json:"total_pnl"`
	AvgDuration   *float64 `json:"avg_duration"` // seconds
}

// -----------------------------------------------------------------------------

// WinRate returns the win percentage over all closed trades.
func (s *MStats) WinRate() float64 {
	total := s.Winners + s.Losers
	if total == 0 {
		return 0.0
	}
	return float64(s.Winners) / float64(total) * 100
}

// -----------------------------------------------------------------------------

// AvgDurationFormatted renders the average hold time.
func (s *MStats) AvgDurationFormatted() string {
	if s.AvgDuration == nil || *s.AvgDuration <= 0 {
		return "N/A"
	}

	hours := *s.AvgDuration / 3600
	switch {
	case hours < 1:
		return fmt.Sprintf("%dm", int(hours*60))
	case hours < 24:
		return fmt.Sprintf("%.1fh", hours)
	default:
		return fmt.Sprintf("%.1fd", hours/24)
	}
}

// -----------------------------------------------------------------------------
// MSystemStatus: overall process and exposure status.
// -----------------------------------------------------------------------------

type MSystemStatus struct {
	Status          string    `json:"status"` // RUNNING, DEGRADED, ERROR
	UptimeSeconds   float64   `json:"uptime_seconds"`
	ActivePositions int       `json:"active_positions"`
	TotalExposure   float64   `json:"total_exposure"`
	DBConnected     bool      `json:"db_connected"`
	LastUpdate      time.Time `json:"last_update"`
}

// -----------------------------------------------------------------------------

// UptimeFormatted renders uptime as a compact string.
func (s *MSystemStatus) UptimeFormatted() string {
	return FormatHours(s.UptimeSeconds / 3600)
}
