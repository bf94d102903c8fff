package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/okorie22/Okorie-AI-sub005/internal/arbitrage"
	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

// Positions lists recorded positions, optionally transitioning one first.
func (a *App) Positions(ctx context.Context, opts PositionsOptions) error {
	db, closeDB, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	engine := arbitrage.NewEngine(storage.NewArbitrageStore(db), a.Logger)

	if opts.CloseID != "" {
		status := opts.CloseStatus
		if status == "" {
			status = storage.StatusClosed
		}
		if err := engine.ClosePosition(ctx, opts.CloseID, status); err != nil {
			return fmt.Errorf("close position %s: %w", opts.CloseID, err)
		}
		fmt.Fprintf(os.Stdout, "position %s marked %s\n", opts.CloseID, status)
	}

	positions, err := engine.Positions(ctx, opts.Status)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Fprintln(os.Stdout, "no positions found")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "ID\tProtocol\tType\tAmount USD\tRate\tStatus\tOpened (UTC)")
		for _, pos := range positions {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				pos.ID,
				pos.Protocol,
				pos.PositionType,
				pos.AmountUSD.StringFixed(2),
				pos.Rate.StringFixed(4),
				pos.Status,
				pos.OpenedAt.UTC().Format(time.RFC3339),
			)
		}
		writer.Flush()
	}

	if opts.HistoryDays <= 0 {
		return nil
	}

	executions, err := engine.History(ctx, opts.HistoryDays)
	if err != nil {
		return err
	}
	if len(executions) == 0 {
		fmt.Fprintln(os.Stdout, "no executions in window")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Executed (UTC)\tBorrow\tLend\tSpread\tAmount USD\tExp. Profit\tStatus")
	for _, exec := range executions {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			exec.ExecutedAt.UTC().Format(time.RFC3339),
			exec.BorrowProtocol,
			exec.LendProtocol,
			exec.Spread.StringFixed(4),
			exec.AmountUSD.StringFixed(2),
			exec.ExpectedProfitUSD.StringFixed(2),
			exec.Status,
		)
	}
	writer.Flush()
	return nil
}
