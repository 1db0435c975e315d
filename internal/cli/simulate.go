package cli

import (
	"github.com/spf13/cobra"

	"fxwatch/internal/app"
)

var (
	simulatePair      string
	simulateRate      string
	simulateTarget    string
	simulateDirection string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Dry-run the alert pipeline against a hypothetical rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			Pair:      simulatePair,
			Rate:      simulateRate,
			Target:    simulateTarget,
			Direction: simulateDirection,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulatePair, "pair", "USD_EUR", "Currency pair to simulate")
	simulateCmd.Flags().StringVar(&simulateRate, "rate", "", "Hypothetical current rate")
	simulateCmd.Flags().StringVar(&simulateTarget, "target", "", "Alert target rate")
	simulateCmd.Flags().StringVar(&simulateDirection, "direction", "gte", "Trigger direction: gte, lte, strict_above or strict_below")
}
