// Command planctl is a CLI client for the plan sync REST API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag  string
	userFlag string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "planctl",
		Short:         "CLI client for the plan sync REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8099", "Plan sync service base URL")
	root.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User ID (required)")
	_ = root.MarkPersistentFlagRequired("user")

	root.AddCommand(newDailyCmd(), newWeeklyCmd())
	root.AddCommand(newConnectCmd(), newDisconnectCmd(), newStatusCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
