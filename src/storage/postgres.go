package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trading-monitor/src/helpers"
	"trading-monitor/src/logger"
	"trading-monitor/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------
// Named read queries against the bot's monitoring schema.
// -----------------------------------------------------------------------------

const pgActivePositionsQuery = `
SELECT
    p.id,
    p.symbol,
    p.exchange,
    p.side,
    p.quantity,
    p.entry_price,
    p.current_price,
    p.stop_loss_price,
    p.unrealized_pnl,
    p.status,
    p.opened_at,
    p.closed_at,
    p.has_trailing_stop,
    p.has_stop_loss,
    ts.state AS ts_state,
    ts.is_activated AS ts_activated,
    ts.current_stop_price AS ts_current_stop_price,
    EXTRACT(EPOCH FROM (NOW() - p.opened_at)) / 3600 AS age_hours
FROM monitoring.positions p
LEFT JOIN monitoring.trailing_stop_state ts
    ON ts.symbol = p.symbol AND ts.exchange = p.exchange
WHERE p.status = 'active'
ORDER BY p.opened_at DESC`

const pgRecentEventsQuery = `
SELECT
    id,
    created_at,
    event_type,
    event_data,
    symbol,
    exchange,
    position_id,
    severity
FROM monitoring.events
WHERE created_at > $1
    AND event_type != 'position_updated'
ORDER BY created_at DESC
LIMIT 200`

const pgStatisticsQuery = `
WITH hourly_stats AS (
    SELECT
        COUNT(*) FILTER (WHERE opened_at > NOW() - INTERVAL '24 hours') AS opened_count,
        COUNT(*) FILTER (WHERE closed_at > NOW() - INTERVAL '24 hours' AND status = 'closed') AS closed_count,
        COUNT(*) FILTER (
            WHERE closed_at > NOW() - INTERVAL '24 hours'
            AND status = 'closed'
            AND COALESCE(realized_pnl, pnl, unrealized_pnl, 0) > 0
        ) AS winners,
        COUNT(*) FILTER (
            WHERE closed_at > NOW() - INTERVAL '24 hours'
            AND status = 'closed'
            AND COALESCE(realized_pnl, pnl, unrealized_pnl, 0) < 0
        ) AS losers,
        COALESCE(
            SUM(COALESCE(realized_pnl, pnl, unrealized_pnl, 0))
            FILTER (WHERE closed_at > NOW() - INTERVAL '24 hours' AND status = 'closed'),
            0
        ) AS total_pnl,
        AVG(EXTRACT(EPOCH FROM (closed_at - opened_at)))
            FILTER (WHERE closed_at > NOW() - INTERVAL '24 hours' AND status = 'closed')
            AS avg_duration
    FROM monitoring.positions
),
ts_stats AS (
    SELECT
        COUNT(*) FILTER (WHERE state = 'active') AS ts_active_count
    FROM monitoring.trailing_stop_state
)
SELECT
    h.opened_count,
    h.closed_count,
    h.winners,
    h.losers,
    h.total_pnl,
    h.avg_duration,
    COALESCE(t.ts_active_count, 0) AS ts_active_count
FROM hourly_stats h
CROSS JOIN ts_stats t`

const pgSystemStatusQuery = `
SELECT
    COUNT(*) FILTER (WHERE status = 'active') AS active_positions,
    COALESCE(SUM(ABS(quantity * current_price)) FILTER (WHERE status = 'active'), 0) AS total_exposure
FROM monitoring.positions`

const pgRecentTradesQuery = `
SELECT
    p.id,
    p.symbol,
    p.exchange,
    p.side,
    p.entry_price,
    p.current_price AS exit_price,
    p.quantity,
    p.pnl AS realized_pnl,
    p.pnl_percentage,
    p.exit_reason,
    p.status,
    p.opened_at,
    COALESCE(p.closed_at, p.updated_at) AS closed_at,
    EXTRACT(EPOCH FROM (COALESCE(p.closed_at, p.updated_at) - p.opened_at)) / 3600 AS hold_hours
FROM monitoring.positions p
WHERE p.status IN ('closed', 'rolled_back', 'canceled')
ORDER BY COALESCE(p.closed_at, p.updated_at) DESC
LIMIT 30`

const pgPerformanceQuery = `
SELECT
    period,
    total_trades,
    winning_trades,
    losing_trades,
    total_pnl,
    win_rate,
    profit_factor,
    sharpe_ratio,
    max_drawdown,
    avg_win,
    avg_loss,
    created_at
FROM monitoring.performance_metrics
ORDER BY created_at DESC
LIMIT 5`

// -----------------------------------------------------------------------------

type PostgresStore struct {
	Config  *models.MConfig
	DB      *sql.DB
	Logger  *logger.Logger
	timeout time.Duration
}

// -----------------------------------------------------------------------------

func NewPostgresStore(cfg *models.MConfig, log *logger.Logger) (*PostgresStore, error) {
	return &PostgresStore{
		Config:  cfg,
		Logger:  log,
		timeout: time.Duration(cfg.Storage.QueryTimeoutSec) * time.Second,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return &helpers.DatabaseError{MonitorError: helpers.MonitorError{Message: "failed to open postgres connection", Cause: err}}
	}

	if err := db.Ping(); err != nil {
		return &helpers.DatabaseError{MonitorError: helpers.MonitorError{Message: "postgres database unreachable", Cause: err}}
	}

	d.DB = db
	d.Logger.Info("PostgresStore initialized successfully")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.DB.PingContext(ctx)
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) ActivePositions(ctx context.Context) ([]models.MPosition, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	rows, err := d.DB.QueryContext(ctx, pgActivePositionsQuery)
	if err != nil {
		return nil, fmt.Errorf("active positions query failed: %w", err)
	}
	defer rows.Close()

	var positions []models.MPosition
	for rows.Next() {
		var (
			p           models.MPosition
			curPrice    sql.NullFloat64
			stopLoss    sql.NullFloat64
			pnl         sql.NullFloat64
			closedAt    sql.NullTime
			tsState     sql.NullString
			tsActivated sql.NullBool
			tsStopPrice sql.NullFloat64
		)

		err := rows.Scan(
			&p.ID, &p.Symbol, &p.Exchange, &p.Side, &p.Quantity, &p.EntryPrice,
			&curPrice, &stopLoss, &pnl, &p.Status, &p.OpenedAt, &closedAt,
			&p.HasTrailingStop, &p.HasStopLoss,
			&tsState, &tsActivated, &tsStopPrice, &p.AgeHours,
		)
		if err != nil {
			// One unparseable row must not blank out the rest.
			d.Logger.Warning("Failed to scan position row: %v", err)
			continue
		}

		p.CurrentPrice = nullFloatPtr(curPrice)
		p.StopLossPrice = nullFloatPtr(stopLoss)
		p.UnrealizedPnl = nullFloatPtr(pnl)
		p.ClosedAt = nullTimePtr(closedAt)
		p.TSState = nullStringPtr(tsState)
		p.TSActivated = nullBoolPtr(tsActivated)
		p.TSStopPrice = nullFloatPtr(tsStopPrice)
		p.ComputeFields()

		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) RecentEvents(ctx context.Context, since time.Time) ([]models.MEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	rows, err := d.DB.QueryContext(ctx, pgRecentEventsQuery, since)
	if err != nil {
		return nil, fmt.Errorf("recent events query failed: %w", err)
	}
	defer rows.Close()

	var events []models.MEvent
	for rows.Next() {
		var (
			e        models.MEvent
			rawData  []byte
			symbol   sql.NullString
			exchange sql.NullString
			posID    sql.NullInt64
			severity sql.NullString
		)

		err := rows.Scan(&e.ID, &e.CreatedAt, &e.EventType, &rawData, &symbol, &exchange, &posID, &severity)
		if err != nil {
			d.Logger.Warning("Failed to scan event row: %v", err)
			continue
		}

		e.EventData = models.ParseEventData(rawData)
		e.Symbol = nullStringPtr(symbol)
		e.Exchange = nullStringPtr(exchange)
		e.PositionID = nullIntPtr(posID)
		if severity.Valid {
			e.Severity = severity.String
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Statistics(ctx context.Context) (*models.MStats, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var (
		s   models.MStats
		avg sql.NullFloat64
	)
	err := d.DB.QueryRowContext(ctx, pgStatisticsQuery).Scan(
		&s.OpenedCount, &s.ClosedCount, &s.Winners, &s.Losers, &s.TotalPnl, &avg, &s.TSActiveCount,
	)
	if err != nil {
		return nil, fmt.Errorf("statistics query failed: %w", err)
	}

	s.AvgDuration = nullFloatPtr(avg)
	return &s, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) SystemStatus(ctx context.Context) (int, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var (
		active   int
		exposure float64
	)
	err := d.DB.QueryRowContext(ctx, pgSystemStatusQuery).Scan(&active, &exposure)
	if err != nil {
		return 0, 0, fmt.Errorf("system status query failed: %w", err)
	}
	return active, exposure, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) RecentTrades(ctx context.Context) ([]models.MTrade, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	rows, err := d.DB.QueryContext(ctx, pgRecentTradesQuery)
	if err != nil {
		return nil, fmt.Errorf("recent trades query failed: %w", err)
	}
	defer rows.Close()

	var trades []models.MTrade
	for rows.Next() {
		var (
			t          models.MTrade
			exitPrice  sql.NullFloat64
			pnl        sql.NullFloat64
			pnlPct     sql.NullFloat64
			exitReason sql.NullString
		)

		err := rows.Scan(
			&t.ID, &t.Symbol, &t.Exchange, &t.Side, &t.EntryPrice, &exitPrice,
			&t.Quantity, &pnl, &pnlPct, &exitReason, &t.Status,
			&t.OpenedAt, &t.ClosedAt, &t.HoldHours,
		)
		if err != nil {
			d.Logger.Warning("Failed to scan trade row: %v", err)
			continue
		}

		t.ExitPrice = nullFloatPtr(exitPrice)
		t.RealizedPnl = nullFloatPtr(pnl)
		t.PnlPercentage = nullFloatPtr(pnlPct)
		t.ExitReason = nullStringPtr(exitReason)

		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) PerformanceSummary(ctx context.Context) ([]models.MPerformance, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	rows, err := d.DB.QueryContext(ctx, pgPerformanceQuery)
	if err != nil {
		return nil, fmt.Errorf("performance query failed: %w", err)
	}
	defer rows.Close()

	var perf []models.MPerformance
	for rows.Next() {
		var (
			p            models.MPerformance
			profitFactor sql.NullFloat64
			sharpe       sql.NullFloat64
			drawdown     sql.NullFloat64
			avgWin       sql.NullFloat64
			avgLoss      sql.NullFloat64
		)

		err := rows.Scan(
			&p.Period, &p.TotalTrades, &p.WinningTrades, &p.LosingTrades,
			&p.TotalPnl, &p.WinRate, &profitFactor, &sharpe, &drawdown,
			&avgWin, &avgLoss, &p.CreatedAt,
		)
		if err != nil {
			d.Logger.Warning("Failed to scan performance row: %v", err)
			continue
		}

		p.ProfitFactor = nullFloatPtr(profitFactor)
		p.SharpeRatio = nullFloatPtr(sharpe)
		p.MaxDrawdown = nullFloatPtr(drawdown)
		p.AvgWin = nullFloatPtr(avgWin)
		p.AvgLoss = nullFloatPtr(avgLoss)

		perf = append(perf, p)
	}

	return perf, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
