package utils

import (
	"trading-monitor/src/models"
)

// -----------------------------------------------------------------------------
// SignalBuffer is a fixed-size circular buffer of received signals.
// True ring buffer - no resizing on push; when full, the oldest entry
// is overwritten. Reads come back newest-first.
// -----------------------------------------------------------------------------

type SignalBuffer struct {
	data     []models.MSignal
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewSignalBuffer creates a new buffer with fixed capacity
func NewSignalBuffer(capacity int) *SignalBuffer {
	if capacity <= 0 {
		capacity = 50 // Default reasonable size
	}

	return &SignalBuffer{
		data:     make([]models.MSignal, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Push adds a signal, evicting the oldest when full
func (sb *SignalBuffer) Push(sig models.MSignal) {
	sb.data[sb.index] = sig

	sb.index = (sb.index + 1) % sb.capacity

	// Update size (never exceeds capacity)
	if sb.size < sb.capacity {
		sb.size++
	}
}

// -----------------------------------------------------------------------------

// Latest returns up to n records, newest first
func (sb *SignalBuffer) Latest(n int) []models.MSignal {
	if sb.size == 0 || n <= 0 {
		return []models.MSignal{}
	}

	count := n
	if n > sb.size {
		count = sb.size
	}

	result := make([]models.MSignal, count)

	// Newest element sits at index-1; walk backwards from there
	for i := 0; i < count; i++ {
		idx := (sb.index - 1 - i + sb.capacity*2) % sb.capacity
		result[i] = sb.data[idx]
	}

	return result
}

// -----------------------------------------------------------------------------

// All returns every held record, newest first
func (sb *SignalBuffer) All() []models.MSignal {
	return sb.Latest(sb.size)
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (sb *SignalBuffer) Size() int {
	return sb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (sb *SignalBuffer) Capacity() int {
	return sb.capacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (sb *SignalBuffer) IsFull() bool {
	return sb.size == sb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (sb *SignalBuffer) Clear() {
	sb.index = 0
	sb.size = 0
}
