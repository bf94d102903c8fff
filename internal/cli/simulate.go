package cli

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateSymbol   string
	simulateBaseline float64
	simulateSpike    float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次清算峰值并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateBaseline <= 0 || simulateSpike <= 0 {
			return errors.New("--baseline 与 --spike 必须大于 0")
		}

		symbol := strings.ToUpper(strings.TrimSpace(simulateSymbol))
		baseline := decimal.NewFromFloat(simulateBaseline)
		spike := decimal.NewFromFloat(simulateSpike)
		return getApp().SimulateAlert(cmd.Context(), symbol, baseline, spike)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "BTC", "Symbol for the simulated spike")
	simulateCmd.Flags().Float64Var(&simulateBaseline, "baseline", 0, "基线清算总量 (USD)")
	simulateCmd.Flags().Float64Var(&simulateSpike, "spike", 0, "峰值清算总量 (USD)")
}
