package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/arbitrage"
	"github.com/okorie22/Okorie-AI-sub005/internal/ratestore"
	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

// Arb performs a one-shot rate refresh and prints ranked opportunities. With
// Execute set, the best opportunity is recorded as a simulated execution.
func (a *App) Arb(ctx context.Context, opts ArbOptions) error {
	if len(a.Config.Rates.Protocols) == 0 {
		return errors.New("no protocols configured under rates.protocols")
	}

	db, closeDB, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	// Scan only; rate history still accrues but no alert rows are written and
	// nothing is published.
	rates, cache := a.newRatesAgent(db, nil, nil, nil)
	if err := rates.Cycle(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("some protocols failed to refresh")
	}

	if best, ok := cache.Best(ratestore.RateLending); ok {
		fmt.Fprintf(os.Stdout, "best lending rate: %s at %s\n", best.Value.StringFixed(4), best.Protocol)
	}
	if best, ok := cache.Best(ratestore.RateBorrowing); ok {
		fmt.Fprintf(os.Stdout, "lowest borrowing rate: %s at %s\n", best.Value.StringFixed(4), best.Protocol)
	}

	opportunities := rates.Opportunities()
	if len(opportunities) == 0 {
		fmt.Fprintln(os.Stdout, "no opportunities above the minimum spread")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Borrow\tRate\tLend\tRate\tSpread\tRisk")
	for _, opp := range opportunities {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			opp.BorrowProtocol,
			opp.BorrowRate.StringFixed(4),
			opp.LendProtocol,
			opp.LendRate.StringFixed(4),
			opp.Spread.StringFixed(4),
			opp.RiskScore,
		)
	}
	writer.Flush()

	if !opts.Execute {
		return nil
	}

	amount := decimal.NewFromFloat(opts.AmountUSD)
	if amount.LessThanOrEqual(decimal.Zero) {
		amount = decimal.NewFromFloat(a.Config.Arbitrage.NotionalUSD)
	}

	engine := arbitrage.NewEngine(storage.NewArbitrageStore(db), a.Logger)
	execution, err := engine.Execute(ctx, opportunities[0], amount)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "recorded simulated execution %s: borrow %s, lend %s, expected profit $%s/yr\n",
		execution.ID, execution.BorrowProtocol, execution.LendProtocol, execution.ExpectedProfitUSD.StringFixed(2))
	return nil
}
