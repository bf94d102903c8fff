package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	insertLiquidationSQL = `INSERT INTO liquidation_events (
        symbol, exchange, side, usd_value, event_time
    ) VALUES (?, ?, ?, ?, ?);`

	totalsSinceSQL = `SELECT side, usd_value, exchange
    FROM liquidation_events
    WHERE symbol = ?
      AND event_time >= ?;`

	deleteLiquidationsBeforeSQL = `DELETE FROM liquidation_events WHERE event_time < ?;`
)

// LiquidationHistoryStore reads the liquidation feed written by the external
// collector process.
type LiquidationHistoryStore interface {
	InsertEvent(ctx context.Context, event LiquidationEvent) error
	TotalsSince(ctx context.Context, symbol string, since time.Time) (LiquidationTotals, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) error
}

// LiquidationStore is the SQLite-backed liquidation history.
type LiquidationStore struct {
	db *DB
}

// NewLiquidationStore wires the shared handle into a liquidation store.
func NewLiquidationStore(db *DB) *LiquidationStore {
	return &LiquidationStore{db: db}
}

// InsertEvent appends one liquidation event.
func (s *LiquidationStore) InsertEvent(ctx context.Context, event LiquidationEvent) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}

	_, execErr := conn.ExecContext(ctx, insertLiquidationSQL,
		event.Symbol,
		event.Exchange,
		event.Side,
		event.USDValue.String(),
		formatTime(event.EventTime),
	)
	if execErr != nil {
		return fmt.Errorf("insert liquidation event: %w", execErr)
	}
	return nil
}

// TotalsSince sums long and short USD liquidations for a symbol since the
// given instant.
func (s *LiquidationStore) TotalsSince(ctx context.Context, symbol string, since time.Time) (LiquidationTotals, error) {
	conn, err := s.db.getConn()
	if err != nil {
		return LiquidationTotals{}, err
	}

	rows, queryErr := conn.QueryContext(ctx, totalsSinceSQL, symbol, formatTime(since))
	if queryErr != nil {
		return LiquidationTotals{}, fmt.Errorf("query liquidation totals: %w", queryErr)
	}
	defer rows.Close()

	totals := LiquidationTotals{Symbol: symbol, LongUSD: decimal.Zero, ShortUSD: decimal.Zero}
	exchanges := make(map[string]struct{})

	for rows.Next() {
		var side, usdStr, exchange string
		if err := rows.Scan(&side, &usdStr, &exchange); err != nil {
			return LiquidationTotals{}, err
		}

		usd, convErr := decimal.NewFromString(usdStr)
		if convErr != nil {
			return LiquidationTotals{}, fmt.Errorf("parse usd value: %w", convErr)
		}

		switch side {
		case SideLong:
			totals.LongUSD = totals.LongUSD.Add(usd)
			totals.LongEvents++
		case SideShort:
			totals.ShortUSD = totals.ShortUSD.Add(usd)
			totals.ShortEvents++
		}
		if exchange != "" {
			exchanges[exchange] = struct{}{}
		}
	}
	if rows.Err() != nil {
		return LiquidationTotals{}, rows.Err()
	}

	totals.Exchanges = len(exchanges)
	return totals, nil
}

// DeleteEventsBefore trims collector history older than cutoff.
func (s *LiquidationStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) error {
	conn, err := s.db.getConn()
	if err != nil {
		return err
	}
	if _, execErr := conn.ExecContext(ctx, deleteLiquidationsBeforeSQL, formatTime(cutoff)); execErr != nil {
		return fmt.Errorf("delete liquidation events: %w", execErr)
	}
	return nil
}

var _ LiquidationHistoryStore = (*LiquidationStore)(nil)
