package cli

import (
	"github.com/spf13/cobra"

	"github.com/okorie22/Okorie-AI-sub005/internal/app"
)

var showLimit int

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show recent alerts from the local audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{Limit: showLimit})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of alerts to display")
}
