package models

import "time"

// -----------------------------------------------------------------------------
// MTrade is one closed (or rolled back / canceled) position.
// -----------------------------------------------------------------------------

type MTrade struct {
	ID            int64     `json:"id"`
	Symbol        string    `json:"symbol"`
	Exchange      string    `json:"exchange"`
	Side          string    `json:"side"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     *float64  `json:"exit_price"`
	Quantity      float64   `json:"quantity"`
	RealizedPnl   *float64  `json:"realized_pnl"`
	PnlPercentage *float64  `json:"pnl_percentage"`
	ExitReason    *string   `json:"exit_reason"`
	Status        string    `json:"status"`
	OpenedAt      time.Time `json:"opened_at"`
	ClosedAt      time.Time `json:"closed_at"`
	HoldHours     float64   `json:"hold_hours"`
}

// -----------------------------------------------------------------------------
// MPerformance is one row of precomputed performance metrics per period.
// -----------------------------------------------------------------------------

type MPerformance struct {
	Period        string    `json:"period"`
	TotalTrades   int       `json:"total_trades"`
	WinningTrades int       `json:"winning_trades"`
	LosingTrades  int       `json:"losing_trades"`
	TotalPnl      float64   `json:"total_pnl"`
	WinRate       float64   `json:"win_rate"`
	ProfitFactor  *float64  `json:"profit_factor"`
	SharpeRatio   *float64  `json:"sharpe_ratio"`
	MaxDrawdown   *float64  `json:"max_drawdown"`
	AvgWin        *float64  `json:"avg_win"`
	AvgLoss       *float64  `json:"avg_loss"`
	CreatedAt     time.Time `json:"created_at"`
}
