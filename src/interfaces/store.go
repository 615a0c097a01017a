package interfaces

import (
	"context"
	"time"

	"trading-monitor/src/models"
)

// -----------------------------------------------------------------------------
// IStore defines the read contract against the bot's monitoring store.
// A fixed set of named queries, no writes. Every method may fail; the
// fetcher treats each failure as a per-entity failure.
// -----------------------------------------------------------------------------

type IStore interface {

	// Initialize opens the connection and verifies reachability.
	Initialize() error

	// -----------------------------------------------------------------------------

	// ActivePositions returns all active positions with trailing stop info.
	ActivePositions(ctx context.Context) ([]models.MPosition, error)

	// -----------------------------------------------------------------------------

	// RecentEvents returns events created strictly after since, newest first.
	RecentEvents(ctx context.Context, since time.Time) ([]models.MEvent, error)

	// -----------------------------------------------------------------------------

	// Statistics returns the 24h trading statistics row.
	Statistics(ctx context.Context) (*models.MStats, error)

	// -----------------------------------------------------------------------------

	// SystemStatus returns active position count and total exposure.
	SystemStatus(ctx context.Context) (int, float64, error)

	// -----------------------------------------------------------------------------

	// RecentTrades returns the latest closed trades.
	RecentTrades(ctx context.Context) ([]models.MTrade, error)

	// -----------------------------------------------------------------------------

	// PerformanceSummary returns the latest precomputed performance rows.
	PerformanceSummary(ctx context.Context) ([]models.MPerformance, error)

	// -----------------------------------------------------------------------------

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
