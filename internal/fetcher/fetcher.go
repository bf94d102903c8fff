package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

// LiquidationSource aggregates liquidation volume for a symbol over a window.
type LiquidationSource interface {
	Totals(ctx context.Context, symbol string, window time.Duration) (storage.LiquidationTotals, error)
}

// RateReading is one protocol rate with presence tracking, since upstream
// payloads omit fields freely.
type RateReading struct {
	Value   decimal.Decimal
	Present bool
}

// ProtocolRates carries whatever rate families a protocol endpoint reported.
type ProtocolRates struct {
	Protocol  string
	Staking   RateReading
	Lending   RateReading
	Borrowing RateReading
	Source    string
}

// ProtocolRatesFetcher retrieves APY data for one protocol.
type ProtocolRatesFetcher interface {
	FetchRates(ctx context.Context, protocol string) (ProtocolRates, error)
}

// MarketContext is the perp-market snapshot attached to alert payloads.
type MarketContext struct {
	Symbol       string
	Funding      decimal.Decimal
	MarkPx       decimal.Decimal
	OpenInterest decimal.Decimal
}

// MarketContextFetcher retrieves perp market context for a symbol.
type MarketContextFetcher interface {
	FetchContext(ctx context.Context, symbol string) (MarketContext, error)
}
