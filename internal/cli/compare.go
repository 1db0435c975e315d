package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fxwatch/internal/app"
)

var (
	comparePair      string
	compareProviders []string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare one pair across providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if comparePair == "" {
			return fmt.Errorf("--pair is required")
		}

		opts := app.CompareOptions{
			Pair:      comparePair,
			Providers: compareProviders,
		}
		return getApp().Compare(cmd.Context(), opts)
	},
}

func init() {
	compareCmd.Flags().StringVar(&comparePair, "pair", "", "Currency pair, e.g. USD_EUR")
	compareCmd.Flags().StringSliceVar(&compareProviders, "providers", nil, "Provider names (defaults to config)")
}
