package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Liquidation sides.
const (
	SideLong  = "long"
	SideShort = "short"
)

// Position types.
const (
	SideLending   = "lending"
	SideBorrowing = "borrowing"
)

// Position lifecycle statuses. Records are never deleted; they transition.
const (
	StatusActive     = "active"
	StatusClosed     = "closed"
	StatusLiquidated = "liquidated"
)

// Execution statuses.
const (
	ExecutionSimulated = "simulated"
	ExecutionClosed    = "closed"
)

// LiquidationEvent is one rekt event written by the external collector.
type LiquidationEvent struct {
	ID        int64
	Symbol    string
	Exchange  string
	Side      string
	USDValue  decimal.Decimal
	EventTime time.Time
}

// LiquidationTotals aggregates a symbol's liquidations over a window.
type LiquidationTotals struct {
	Symbol      string
	LongUSD     decimal.Decimal
	ShortUSD    decimal.Decimal
	LongEvents  int
	ShortEvents int
	Exchanges   int
}

// AlertRecord is the locally persisted audit copy of a published event.
type AlertRecord struct {
	ID          int64
	EventID     string
	SourceAgent string
	Symbol      string
	EventType   string
	Severity    string
	Confidence  float64
	Payload     json.RawMessage
	EventTime   time.Time
	CreatedAt   time.Time
}

// Position is an open lending or borrowing leg of an arbitrage execution.
type Position struct {
	ID           string
	Protocol     string
	PositionType string
	AmountUSD    decimal.Decimal
	Rate         decimal.Decimal
	OpenedAt     time.Time
	Status       string
	UpdatedAt    time.Time
}

// Execution records one acted-on arbitrage opportunity.
type Execution struct {
	ID                string
	BorrowProtocol    string
	BorrowRate        decimal.Decimal
	LendProtocol      string
	LendRate          decimal.Decimal
	Spread            decimal.Decimal
	AmountUSD         decimal.Decimal
	ExpectedProfitUSD decimal.Decimal
	Status            string
	Notes             string
	ExecutedAt        time.Time
}

// RateObservation is one persisted rate history point.
type RateObservation struct {
	ID         int64
	Protocol   string
	RateType   string
	Rate       decimal.Decimal
	Source     string
	CapturedAt time.Time
}
