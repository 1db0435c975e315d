package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fxwatch/internal/app"
)

var (
	showPair  string
	showUser  string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show [samples|notifications|inbox]",
	Short: "Display recent rate samples, notification records, or a user's inbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		if args[0] == "samples" && showPair == "" {
			return fmt.Errorf("--pair is required when showing samples")
		}
		if args[0] == "inbox" && showUser == "" {
			return fmt.Errorf("--user is required when showing the inbox")
		}

		opts := app.ShowOptions{
			Kind:  args[0],
			Pair:  showPair,
			User:  showUser,
			Limit: showLimit,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showPair, "pair", "", "Currency pair, e.g. USD_EUR")
	showCmd.Flags().StringVar(&showUser, "user", "", "User whose inbox to display")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
}
