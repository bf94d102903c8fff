package cli

import (
	"github.com/spf13/cobra"

	"github.com/okorie22/Okorie-AI-sub005/internal/app"
)

var (
	positionsStatus      string
	positionsCloseID     string
	positionsCloseStatus string
	positionsHistoryDays int
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List and transition recorded arbitrage positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Positions(cmd.Context(), app.PositionsOptions{
			Status:      positionsStatus,
			CloseID:     positionsCloseID,
			CloseStatus: positionsCloseStatus,
			HistoryDays: positionsHistoryDays,
		})
	},
}

func init() {
	positionsCmd.Flags().StringVar(&positionsStatus, "status", "", "Filter by status (active, closed, liquidated)")
	positionsCmd.Flags().StringVar(&positionsCloseID, "close", "", "Position ID to transition before listing")
	positionsCmd.Flags().StringVar(&positionsCloseStatus, "close-status", "", "Target status for --close (default closed)")
	positionsCmd.Flags().IntVar(&positionsHistoryDays, "history", 0, "Also list executions from the trailing N days")
}
