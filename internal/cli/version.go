package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fxwatch/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "fxwatch %s\n", version.Version)
		fmt.Fprintf(out, "commit: %s\n", version.Commit)
		fmt.Fprintf(out, "built:  %s\n", version.BuildDate)
	},
}
