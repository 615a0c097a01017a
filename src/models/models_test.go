package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPosition_ComputeFields_Long(t *testing.T) {
	cur := 110.0
	p := MPosition{
		Symbol:       "BTCUSDT",
		Side:         "LONG",
		EntryPrice:   100.0,
		CurrentPrice: &cur,
		AgeHours:     3.34,
	}
	p.ComputeFields()

	assert.InDelta(t, 10.0, p.PnlPercent, 0.001)
	assert.Equal(t, "3h 20m", p.AgeFormatted)
}

func TestPosition_ComputeFields_Short(t *testing.T) {
	cur := 90.0
	p := MPosition{
		Side:         "SHORT",
		EntryPrice:   100.0,
		CurrentPrice: &cur,
	}
	p.ComputeFields()

	// A short profits when the price falls
	assert.InDelta(t, 10.0, p.PnlPercent, 0.001)
}

func TestPosition_ComputeFields_NoCurrentPrice(t *testing.T) {
	p := MPosition{Side: "LONG", EntryPrice: 100.0}
	p.ComputeFields()

	assert.Equal(t, 0.0, p.PnlPercent)
}

func TestPosition_ComputeFields_ZeroEntry(t *testing.T) {
	cur := 50.0
	p := MPosition{Side: "LONG", EntryPrice: 0, CurrentPrice: &cur}
	p.ComputeFields()

	assert.Equal(t, 0.0, p.PnlPercent)
}

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "0m", FormatHours(0))
	assert.Equal(t, "30m", FormatHours(0.5))
	assert.Equal(t, "2h 0m", FormatHours(2))
	assert.Equal(t, "1d 2h", FormatHours(26.25))
}

func TestStats_WinRate(t *testing.T) {
	s := MStats{Winners: 3, Losers: 1}
	assert.InDelta(t, 75.0, s.WinRate(), 0.001)

	empty := MStats{}
	assert.Equal(t, 0.0, empty.WinRate())
}

func TestParseEventData_ValidJSON(t *testing.T) {
	data := ParseEventData([]byte(`{"price": 42.5, "message": "filled"}`))

	assert.Equal(t, 42.5, data["price"])
	assert.Equal(t, "filled", data["message"])
}

func TestParseEventData_NotJSON(t *testing.T) {
	data := ParseEventData([]byte("plain text event"))

	assert.Equal(t, "plain text event", data["message"])
}

func TestParseEventData_Empty(t *testing.T) {
	data := ParseEventData(nil)

	assert.Empty(t, data)
}

func TestEvent_FormattedTime(t *testing.T) {
	e := MEvent{CreatedAt: time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC)}
	assert.Equal(t, "14:05:09", e.FormattedTime())
}
