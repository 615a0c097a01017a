package fetcher

import (
	"context"
	"sync"
	"time"

	"trading-monitor/src/interfaces"
	"trading-monitor/src/logger"
	"trading-monitor/src/models"
)

// -----------------------------------------------------------------------------
// Fetcher polls the bot database on two cadences and keeps the latest
// results cached. Each entity is fetched independently: a failing query
// leaves that entity's cached value in place and never blocks the rest.
// Snapshots are rebuilt off to the side and swapped in whole, so readers
// never observe a half-updated cycle.
// -----------------------------------------------------------------------------

type Fetcher struct {
	Config  *models.MConfig
	Store   interfaces.IStore
	Logger  *logger.Logger
	Signals interfaces.ISignalFeed // optional, nil when the signal feed is disabled

	started time.Time

	mu            sync.RWMutex
	fast          models.MFastSnapshot
	slow          models.MSlowSnapshot
	eventIDs      map[int64]struct{}
	lastEventTime time.Time

	fastErrors    int
	slowErrors    int
	lastFastCycle int64
	lastSlowCycle int64
}

// -----------------------------------------------------------------------------

func NewFetcher(cfg *models.MConfig, store interfaces.IStore, log *logger.Logger) *Fetcher {
	return &Fetcher{
		Config:   cfg,
		Store:    store,
		Logger:   log,
		started:  time.Now(),
		eventIDs: make(map[int64]struct{}),
	}
}

// -----------------------------------------------------------------------------

// Start launches the two polling loops. Both run an immediate first cycle
// so the cache is warm before the server starts answering.
func (f *Fetcher) Start(ctx context.Context, wg *sync.WaitGroup) {
	f.RefreshFast(ctx)
	f.RefreshSlow(ctx)

	wg.Add(2)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(f.Config.Fetcher.FastIntervalSeconds * float64(time.Second)))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				f.Logger.Info("Fast polling loop stopped")
				return
			case <-ticker.C:
				f.RefreshFast(ctx)
			}
		}
	}()

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(f.Config.Fetcher.SlowIntervalSeconds * float64(time.Second)))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				f.Logger.Info("Slow polling loop stopped")
				return
			case <-ticker.C:
				f.RefreshSlow(ctx)
			}
		}
	}()

	f.Logger.Info("Fetcher started (fast=%.1fs slow=%.1fs)",
		f.Config.Fetcher.FastIntervalSeconds, f.Config.Fetcher.SlowIntervalSeconds)
}

// -----------------------------------------------------------------------------

// RefreshFast refreshes positions, events and statistics. Entities that
// fail keep their previous cached value; success and failure are tracked
// per cycle for the degraded flag.
func (f *Fetcher) RefreshFast(ctx context.Context) {
	f.mu.RLock()
	next := f.fast
	since := f.lastEventTime
	f.mu.RUnlock()

	cycleFailed := false

	// 1. Active positions
	positions, err := f.Store.ActivePositions(ctx)
	if err != nil {
		f.Logger.Warning("Positions refresh failed: %v", err)
		cycleFailed = true
	} else {
		next.Positions = positions
	}

	// 2. New events since the high-water mark
	fetched, err := f.Store.RecentEvents(ctx, since)
	if err != nil {
		f.Logger.Warning("Events refresh failed: %v", err)
		cycleFailed = true
		fetched = nil
	}

	// 3. 24h statistics
	stats, err := f.Store.Statistics(ctx)
	if err != nil {
		f.Logger.Warning("Statistics refresh failed: %v", err)
		cycleFailed = true
	} else {
		next.Stats = stats
	}

	next.Timestamp = time.Now()

	// 4. Merge and publish atomically
	f.mu.Lock()
	if len(fetched) > 0 {
		next.Events = f.mergeEventsLocked(fetched)
	} else {
		next.Events = f.fast.Events
	}
	f.fast = next
	f.lastFastCycle = time.Now().Unix()
	if cycleFailed {
		f.fastErrors++
		if f.fastErrors == f.Config.Fetcher.ErrorThreshold {
			f.Logger.Error("Fast refresh degraded after %d consecutive failures", f.fastErrors)
		}
	} else {
		f.fastErrors = 0
	}
	f.mu.Unlock()
}

// -----------------------------------------------------------------------------

// RefreshSlow refreshes system status, recent trades and performance.
func (f *Fetcher) RefreshSlow(ctx context.Context) {
	f.mu.RLock()
	next := f.slow
	f.mu.RUnlock()

	cycleFailed := false

	// 1. System status (active count + exposure + db health)
	active, exposure, err := f.Store.SystemStatus(ctx)
	if err != nil {
		f.Logger.Warning("System status refresh failed: %v", err)
		cycleFailed = true
		if next.Status != nil {
			st := *next.Status
			st.DBConnected = f.Store.Ping(ctx) == nil
			st.UptimeSeconds = time.Since(f.started).Seconds()
			next.Status = &st
		}
	} else {
		next.Status = &models.MSystemStatus{
			Status:          "running",
			UptimeSeconds:   time.Since(f.started).Seconds(),
			ActivePositions: active,
			TotalExposure:   exposure,
			DBConnected:     true,
			LastUpdate:      time.Now(),
		}
	}

	// 2. Recent closed trades
	trades, err := f.Store.RecentTrades(ctx)
	if err != nil {
		f.Logger.Warning("Recent trades refresh failed: %v", err)
		cycleFailed = true
	} else {
		next.RecentTrades = trades
	}

	// 3. Performance summary
	perf, err := f.Store.PerformanceSummary(ctx)
	if err != nil {
		f.Logger.Warning("Performance refresh failed: %v", err)
		cycleFailed = true
	} else {
		next.Performance = perf
	}

	next.Timestamp = time.Now()

	f.mu.Lock()
	f.slow = next
	f.lastSlowCycle = time.Now().Unix()
	if cycleFailed {
		f.slowErrors++
		if f.slowErrors == f.Config.Fetcher.ErrorThreshold {
			f.Logger.Error("Slow refresh degraded after %d consecutive failures", f.slowErrors)
		}
	} else {
		f.slowErrors = 0
	}
	f.mu.Unlock()
}

// -----------------------------------------------------------------------------

// mergeEventsLocked folds freshly fetched events (newest first) into the
// cached buffer. Events already seen are dropped by id, the result stays
// newest first and is trimmed to the configured maximum, and the
// high-water mark advances to the newest created_at. Caller holds f.mu.
func (f *Fetcher) mergeEventsLocked(fetched []models.MEvent) []models.MEvent {
	var fresh []models.MEvent
	for _, e := range fetched {
		if _, seen := f.eventIDs[e.ID]; seen {
			continue
		}
		fresh = append(fresh, e)
		if e.CreatedAt.After(f.lastEventTime) {
			f.lastEventTime = e.CreatedAt
		}
	}

	if len(fresh) == 0 {
		return f.fast.Events
	}

	merged := make([]models.MEvent, 0, len(fresh)+len(f.fast.Events))
	merged = append(merged, fresh...)
	merged = append(merged, f.fast.Events...)

	if len(merged) > f.Config.Fetcher.MaxEvents {
		merged = merged[:f.Config.Fetcher.MaxEvents]
	}

	// Rebuild the id set from what survived the trim
	f.eventIDs = make(map[int64]struct{}, len(merged))
	for _, e := range merged {
		f.eventIDs[e.ID] = struct{}{}
	}

	return merged
}

// -----------------------------------------------------------------------------

// SnapshotFast returns a copy of the fast-cadence cache.
func (f *Fetcher) SnapshotFast() models.MFastSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := f.fast
	snap.Positions = append([]models.MPosition(nil), f.fast.Positions...)
	snap.Events = append([]models.MEvent(nil), f.fast.Events...)
	return snap
}

// -----------------------------------------------------------------------------

// SnapshotSlow returns a copy of the slow-cadence cache.
func (f *Fetcher) SnapshotSlow() models.MSlowSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := f.slow
	snap.RecentTrades = append([]models.MTrade(nil), f.slow.RecentTrades...)
	snap.Performance = append([]models.MPerformance(nil), f.slow.Performance...)
	return snap
}

// -----------------------------------------------------------------------------

// FullSnapshot combines both caches plus the signal feed, for new
// subscribers and the snapshot endpoint.
func (f *Fetcher) FullSnapshot() models.MFullSnapshot {
	fast := f.SnapshotFast()
	slow := f.SnapshotSlow()

	full := models.MFullSnapshot{
		Positions:    fast.Positions,
		Events:       fast.Events,
		Stats:        fast.Stats,
		Status:       slow.Status,
		RecentTrades: slow.RecentTrades,
		Performance:  slow.Performance,
		Timestamp:    time.Now(),
	}

	if f.Signals != nil {
		full.Signals = f.Signals.Signals(0)
		st := f.Signals.Status()
		full.SignalStatus = &st
	}

	return full
}

// -----------------------------------------------------------------------------

// Status reports the health of both polling loops.
func (f *Fetcher) Status() models.MFetcherStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()

	threshold := f.Config.Fetcher.ErrorThreshold
	return models.MFetcherStatus{
		FastErrors:    f.fastErrors,
		SlowErrors:    f.slowErrors,
		Degraded:      f.fastErrors >= threshold || f.slowErrors >= threshold,
		LastFastCycle: f.lastFastCycle,
		LastSlowCycle: f.lastSlowCycle,
	}
}

// -----------------------------------------------------------------------------

// Uptime reports how long the fetcher has been running.
func (f *Fetcher) Uptime() time.Duration {
	return time.Since(f.started)
}
