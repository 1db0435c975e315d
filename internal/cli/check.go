package cli

import (
	"github.com/spf13/cobra"
)

var checkUser string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single alert evaluation pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(cmd.Context(), checkUser)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkUser, "user", "", "Scope the pass to one user's alerts")
}
