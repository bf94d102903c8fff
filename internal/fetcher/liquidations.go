package fetcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

// StorageLiquidations reads aggregated liquidation volume from the local
// database that the external collector writes into.
type StorageLiquidations struct {
	store  storage.LiquidationHistoryStore
	logger zerolog.Logger
}

// NewStorageLiquidations wraps the liquidation history store as a source.
func NewStorageLiquidations(store storage.LiquidationHistoryStore, logger zerolog.Logger) *StorageLiquidations {
	return &StorageLiquidations{
		store:  store,
		logger: logger.With().Str("component", "liquidation_source").Logger(),
	}
}

// Totals aggregates a symbol's liquidations over the trailing window.
func (s *StorageLiquidations) Totals(ctx context.Context, symbol string, window time.Duration) (storage.LiquidationTotals, error) {
	since := time.Now().UTC().Add(-window)
	return s.store.TotalsSince(ctx, symbol, since)
}

var _ LiquidationSource = (*StorageLiquidations)(nil)
