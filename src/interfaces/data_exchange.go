package interfaces

import "trading-monitor/src/models"

// -----------------------------------------------------------------------------
// IBroadcaster defines the push surface other components use to reach the
// connected dashboard clients.
// -----------------------------------------------------------------------------

type IBroadcaster interface {

	// Broadcast pushes one typed update to all current subscribers.
	// Best-effort: a failed subscriber never affects the others.
	Broadcast(kind string, data interface{})

	// -----------------------------------------------------------------------------

	// Start the server
	Start() error

	// -----------------------------------------------------------------------------

	// Stop the server gracefully
	Stop() error
}

// -----------------------------------------------------------------------------
// ISignalFeed is the read-only view of the upstream signal client exposed
// to the HTTP handlers and the snapshot builder.
// -----------------------------------------------------------------------------

type ISignalFeed interface {

	// Signals returns up to limit buffered signals, newest first.
	Signals(limit int) []models.MSignal

	// -----------------------------------------------------------------------------

	// Status returns the connection status surface.
	Status() models.MSignalStatus
}
