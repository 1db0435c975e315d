package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fxwatch/internal/app"
	"fxwatch/internal/storage"
)

var (
	alertUser      string
	alertPair      string
	alertTarget    string
	alertDirection string

	prefUser  string
	prefInApp bool
	prefEmail bool
	prefPush  bool
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage rate alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AlertOptions{
			UserID:    alertUser,
			Pair:      alertPair,
			Target:    alertTarget,
			Direction: alertDirection,
		}
		return getApp().CreateAlert(cmd.Context(), opts)
	},
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertUser == "" {
			return fmt.Errorf("--user is required")
		}
		return getApp().ListAlerts(cmd.Context(), alertUser)
	},
}

var alertPrefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Set a user's notification channel preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetPreference(cmd.Context(), storage.Preference{
			UserID: prefUser,
			InApp:  prefInApp,
			Email:  prefEmail,
			Push:   prefPush,
		})
	},
}

func init() {
	alertAddCmd.Flags().StringVar(&alertUser, "user", "", "User the alert belongs to")
	alertAddCmd.Flags().StringVar(&alertPair, "pair", "", "Currency pair, e.g. USD_EUR")
	alertAddCmd.Flags().StringVar(&alertTarget, "target", "", "Target rate, e.g. 0.85")
	alertAddCmd.Flags().StringVar(&alertDirection, "direction", "gte", "Trigger direction: gte, lte, strict_above or strict_below")

	alertListCmd.Flags().StringVar(&alertUser, "user", "", "User whose alerts to list")

	alertPrefsCmd.Flags().StringVar(&prefUser, "user", "", "User the preferences belong to")
	alertPrefsCmd.Flags().BoolVar(&prefInApp, "in-app", true, "Deliver in-app notifications")
	alertPrefsCmd.Flags().BoolVar(&prefEmail, "email", false, "Deliver email notifications")
	alertPrefsCmd.Flags().BoolVar(&prefPush, "push", false, "Deliver push notifications")

	alertCmd.AddCommand(alertAddCmd)
	alertCmd.AddCommand(alertListCmd)
	alertCmd.AddCommand(alertPrefsCmd)
}
