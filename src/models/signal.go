package models

import "time"

// -----------------------------------------------------------------------------
// MSignal is the normalized form of one upstream signal frame.
// -----------------------------------------------------------------------------

type MSignal struct {
	Symbol       string    `json:"symbol"`
	Score        float64   `json:"score"`
	Patterns     []string  `json:"patterns"`
	RSI          *float64  `json:"rsi"`
	VolumeZScore *float64  `json:"volume_zscore"`
	OIDeltaPct   *float64  `json:"oi_delta_pct"`
	Timestamp    string    `json:"timestamp"`   // source timestamp, passed through
	ReceivedAt   time.Time `json:"received_at"` // local receipt time
}

// -----------------------------------------------------------------------------
// MSignalStatus is the read-only status surface of the signal client.
// -----------------------------------------------------------------------------

type MSignalStatus struct {
	Connected       bool       `json:"connected"`
	Authenticated   bool       `json:"authenticated"`
	URL             string     `json:"url"`
	SignalsReceived int64      `json:"signals_received"`
	LastSignalTime  *time.Time `json:"last_signal_time"`
	ConnectedAt     *time.Time `json:"connected_at"`
	BufferSize      int        `json:"buffer_size"`
	ReconnectCount  int64      `json:"reconnect_count"`
}
