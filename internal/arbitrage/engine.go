package arbitrage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

var daysPerYear = decimal.NewFromInt(365)

// Engine keeps the books for acted-on opportunities. Live protocol execution
// is out of scope; every execution is recorded as a simulation.
type Engine struct {
	store  storage.PositionStore
	logger zerolog.Logger
}

// NewEngine constructs the bookkeeping engine.
func NewEngine(store storage.PositionStore, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With().Str("component", "arbitrage_engine").Logger(),
	}
}

// EstimateProfit projects USD profit for holding the spread over a number of
// days.
func EstimateProfit(opp Opportunity, amountUSD decimal.Decimal, days int) decimal.Decimal {
	return amountUSD.Mul(opp.Spread).Mul(decimal.NewFromInt(int64(days))).Div(daysPerYear)
}

// Execute records an opportunity as a simulated execution: one borrowing leg,
// one lending leg, and the execution row itself.
func (e *Engine) Execute(ctx context.Context, opp Opportunity, amountUSD decimal.Decimal) (storage.Execution, error) {
	if e.store == nil {
		return storage.Execution{}, storage.ErrNotConfigured
	}
	if amountUSD.LessThanOrEqual(decimal.Zero) {
		return storage.Execution{}, fmt.Errorf("execution amount must be positive")
	}

	now := time.Now().UTC()
	execution := storage.Execution{
		ID:                uuid.NewString(),
		BorrowProtocol:    opp.BorrowProtocol,
		BorrowRate:        opp.BorrowRate,
		LendProtocol:      opp.LendProtocol,
		LendRate:          opp.LendRate,
		Spread:            opp.Spread,
		AmountUSD:         amountUSD,
		ExpectedProfitUSD: EstimateProfit(opp, amountUSD, 365),
		Status:            storage.ExecutionSimulated,
		Notes:             "live execution not implemented; simulated only",
		ExecutedAt:        now,
	}

	legs := []storage.Position{
		{
			ID:           uuid.NewString(),
			Protocol:     opp.BorrowProtocol,
			PositionType: storage.SideBorrowing,
			AmountUSD:    amountUSD,
			Rate:         opp.BorrowRate,
			OpenedAt:     now,
			Status:       storage.StatusActive,
		},
		{
			ID:           uuid.NewString(),
			Protocol:     opp.LendProtocol,
			PositionType: storage.SideLending,
			AmountUSD:    amountUSD,
			Rate:         opp.LendRate,
			OpenedAt:     now,
			Status:       storage.StatusActive,
		},
	}

	for _, leg := range legs {
		if err := e.store.SavePosition(ctx, leg); err != nil {
			return storage.Execution{}, fmt.Errorf("record %s leg: %w", leg.PositionType, err)
		}
	}
	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return storage.Execution{}, fmt.Errorf("record execution: %w", err)
	}

	e.logger.Info().
		Str("borrow", opp.BorrowProtocol).
		Str("lend", opp.LendProtocol).
		Str("spread", opp.Spread.String()).
		Str("amount_usd", amountUSD.String()).
		Msg("arbitrage execution recorded")

	return execution, nil
}

// ClosePosition transitions a position to closed or liquidated. Positions are
// never deleted.
func (e *Engine) ClosePosition(ctx context.Context, id, status string) error {
	if e.store == nil {
		return storage.ErrNotConfigured
	}
	switch status {
	case storage.StatusClosed, storage.StatusLiquidated:
	default:
		return fmt.Errorf("invalid closing status %q", status)
	}
	return e.store.UpdatePositionStatus(ctx, id, status)
}

// Positions lists recorded positions, optionally filtered by status.
func (e *Engine) Positions(ctx context.Context, status string) ([]storage.Position, error) {
	if e.store == nil {
		return nil, storage.ErrNotConfigured
	}
	return e.store.ListPositions(ctx, status)
}

// History lists executions over the trailing number of days.
func (e *Engine) History(ctx context.Context, days int) ([]storage.Execution, error) {
	if e.store == nil {
		return nil, storage.ErrNotConfigured
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return e.store.ListExecutionsSince(ctx, since)
}
