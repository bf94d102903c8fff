package cli

import (
	"github.com/spf13/cobra"

	"github.com/okorie22/Okorie-AI-sub005/internal/app"
)

var (
	arbExecute bool
	arbAmount  float64
)

var arbCmd = &cobra.Command{
	Use:   "arb",
	Short: "Scan current rates for borrow/lend spread opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Arb(cmd.Context(), app.ArbOptions{
			Execute:   arbExecute,
			AmountUSD: arbAmount,
		})
	},
}

func init() {
	arbCmd.Flags().BoolVar(&arbExecute, "execute", false, "Record the best opportunity as a simulated execution")
	arbCmd.Flags().Float64Var(&arbAmount, "amount", 0, "Notional USD for the execution (defaults to config)")
}
