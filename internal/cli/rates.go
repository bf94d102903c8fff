package cli

import (
	"github.com/spf13/cobra"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Run the cross-protocol rate monitor and arbitrage scanner",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunRates(cmd.Context())
	},
}
