package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/agent"
	"github.com/okorie22/Okorie-AI-sub005/internal/fetcher"
	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

// SimulateAlert 用给定的基线与峰值流量模拟一次完整的告警流程。
// The pipeline runs against a throwaway in-memory database; only the Redis
// publish (when alerting is enabled) leaves the process.
func (a *App) SimulateAlert(ctx context.Context, symbol string, baseline, spike decimal.Decimal) error {
	if baseline.LessThanOrEqual(decimal.Zero) || spike.LessThanOrEqual(decimal.Zero) {
		return errors.New("baseline and spike must be positive")
	}

	db, err := storage.OpenMemory(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	publisher := a.newPublisher()
	if publisher != nil {
		defer publisher.Close()
	}

	source := &staticLiquidationSource{totals: []storage.LiquidationTotals{
		{Symbol: symbol, LongUSD: baseline, ShortUSD: baseline},
		{Symbol: symbol, LongUSD: spike, ShortUSD: spike},
	}}

	audit := storage.NewAlertAuditStore(db)
	liq := agent.NewLiquidationAgent(agent.LiquidationOptions{
		Symbols:          []string{symbol},
		Threshold:        decimal.NewFromFloat(a.Config.Liquidation.Threshold),
		ComparisonWindow: a.Config.Liquidation.ComparisonWindow,
	}, source, nil, a.newGate(ctx, db), asPublisher(publisher), audit, a.newNarrator(), a.Logger)

	// First cycle seeds the baseline, second compares the spike against it.
	if err := liq.Cycle(ctx); err != nil {
		return err
	}
	if err := liq.Cycle(ctx); err != nil {
		return err
	}

	alerts, err := audit.ListRecentAlerts(ctx, 1)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alert fired: spike below threshold")
		return nil
	}

	alert := alerts[0]
	fmt.Fprintf(os.Stdout, "alert fired at %s: %s %s severity=%s confidence=%.2f\n",
		alert.EventTime.UTC().Format(time.RFC3339), alert.Symbol, alert.EventType, alert.Severity, alert.Confidence)
	fmt.Fprintln(os.Stdout, string(alert.Payload))
	return nil
}

// staticLiquidationSource replays a fixed sequence of totals, repeating the
// last entry once exhausted.
type staticLiquidationSource struct {
	mu     sync.Mutex
	totals []storage.LiquidationTotals
	calls  int
}

func (s *staticLiquidationSource) Totals(ctx context.Context, symbol string, window time.Duration) (storage.LiquidationTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.totals) {
		idx = len(s.totals) - 1
	}
	s.calls++

	totals := s.totals[idx]
	totals.Symbol = symbol
	return totals, nil
}

var _ fetcher.LiquidationSource = (*staticLiquidationSource)(nil)
