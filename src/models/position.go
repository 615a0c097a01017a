package models

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// MPosition represents one active position row joined with trailing stop state.
// -----------------------------------------------------------------------------

type MPosition struct {
	ID              int64      `json:"id"`
	Symbol          string     `json:"symbol"`
	Exchange        string     `json:"exchange"`
	Side            string     `json:"side"` // LONG or SHORT
	Quantity        float64    `json:"quantity"`
	EntryPrice      float64    `json:"entry_price"`
	CurrentPrice    *float64   `json:"current_price"`
	StopLossPrice   *float64   `json:"stop_loss_price"`
	UnrealizedPnl   *float64   `json:"unrealized_pnl"`
	Status          string     `json:"status"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at"`
	HasTrailingStop bool       `json:"has_trailing_stop"`
	HasStopLoss     bool       `json:"has_stop_loss"`
	TSState         *string    `json:"ts_state"`
	TSActivated     *bool      `json:"ts_activated"`
	TSStopPrice     *float64   `json:"ts_current_stop_price"`
	AgeHours        float64    `json:"age_hours"`
	PnlPercent      float64    `json:"pnl_percent"`
	AgeFormatted    string     `json:"age_formatted"`
}

// -----------------------------------------------------------------------------

// ComputeFields fills the derived display fields. Total mapping: every
// optional input has a defined default, so this never fails.
func (p *MPosition) ComputeFields() {
	p.PnlPercent = p.pnlPercent()
	p.AgeFormatted = FormatHours(p.AgeHours)
}

// -----------------------------------------------------------------------------

func (p *MPosition) pnlPercent() float64 {
	if p.CurrentPrice == nil || p.EntryPrice == 0 {
		return 0.0
	}
	if p.Side == "LONG" {
		return (*p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
	}
	// SHORT
	return (p.EntryPrice - *p.CurrentPrice) / p.EntryPrice * 100
}

// -----------------------------------------------------------------------------

// FormatHours renders an hour count as a compact age string (e.g. "3h 20m").
func FormatHours(hours float64) string {
	switch {
	case hours < 1:
		return fmt.Sprintf("%dm", int(hours*60))
	case hours < 24:
		h := int(hours)
		m := int((hours - float64(h)) * 60)
		return fmt.Sprintf("%dh %dm", h, m)
	default:
		days := int(hours / 24)
		h := int(hours) % 24
		return fmt.Sprintf("%dd %dh", days, h)
	}
}
