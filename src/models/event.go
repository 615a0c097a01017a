package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// MEvent is one row from the bot's event stream.
// -----------------------------------------------------------------------------

type MEvent struct {
	ID         int64                  `json:"id"`
	CreatedAt  time.Time              `json:"created_at"`
	EventType  string                 `json:"event_type"`
	EventData  map[string]interface{} `json:"event_data"`
	Symbol     *string                `json:"symbol"`
	Exchange   *string                `json:"exchange"`
	PositionID *int64                 `json:"position_id"`
	Severity   string                 `json:"severity"`
}

// -----------------------------------------------------------------------------

// ParseEventData decodes the raw event_data column. A non-JSON string is
// kept as a message payload instead of being rejected.
func ParseEventData(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	return map[string]interface{}{"message": string(raw)}
}

// -----------------------------------------------------------------------------

// FormattedTime renders the created_at timestamp for display.
func (e *MEvent) FormattedTime() string {
	return e.CreatedAt.Format("15:04:05")
}

// -----------------------------------------------------------------------------

// Message builds the one-line event description shown in the stream.
func (e *MEvent) Message() string {
	var parts []string

	if e.Symbol != nil && *e.Symbol != "" {
		parts = append(parts, *e.Symbol)
	}

	if e.EventData != nil {
		if price, ok := e.EventData["price"].(float64); ok {
			parts = append(parts, fmt.Sprintf("@%.2f", price))
		}
		if pnl, ok := e.EventData["pnl"].(float64); ok {
			parts = append(parts, fmt.Sprintf("PnL: $%+.2f", pnl))
		}
		if msg, ok := e.EventData["message"].(string); ok {
			parts = append(parts, msg)
		}
	}

	if len(parts) == 0 {
		return ""
	}

	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}
